package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/unimart-ng/backend-unimart/internal/analytics"
	"github.com/unimart-ng/backend-unimart/internal/app"
	"github.com/unimart-ng/backend-unimart/internal/auth"
	"github.com/unimart-ng/backend-unimart/internal/cart"
	"github.com/unimart-ng/backend-unimart/internal/catalog"
	"github.com/unimart-ng/backend-unimart/internal/checkout"
	"github.com/unimart-ng/backend-unimart/internal/common"
	"github.com/unimart-ng/backend-unimart/internal/config"
	"github.com/unimart-ng/backend-unimart/internal/events"
	"github.com/unimart-ng/backend-unimart/internal/health"
	"github.com/unimart-ng/backend-unimart/internal/lock"
	"github.com/unimart-ng/backend-unimart/internal/obs"
	"github.com/unimart-ng/backend-unimart/internal/order"
	"github.com/unimart-ng/backend-unimart/internal/payment"
	"github.com/unimart-ng/backend-unimart/internal/pricing"
	"github.com/unimart-ng/backend-unimart/internal/ratelimit"
	"github.com/unimart-ng/backend-unimart/internal/resilience"
	"github.com/unimart-ng/backend-unimart/internal/security"
	"github.com/unimart-ng/backend-unimart/internal/vendor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "unimart")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "unimart-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := app.New(bootCtx, cfg, app.Options{
		AppName:        "unimart-api",
		RunMigrations:  true,
		InstrumentObs:  metricsEnabled,
		WithTaskClient: true,
		WithLimiter:    true,
	})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap dependencies")
	}
	defer deps.Close()

	st := deps.Store
	engine := pricing.Engine{Rates: ratesFromConfig(cfg)}

	bus := &events.Bus{
		Store:     st,
		Notifiers: []events.Notifier{events.TaskNotifier{Client: deps.Tasks}},
	}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store: st,
		Cache: catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalogSvc)

	authSvc, err := auth.NewService(auth.Config{
		Store:           st,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authSvc}
	authMW := auth.Middleware{Service: authSvc}

	cartSvc := &cart.Service{Store: st, Engine: engine, TTL: cfg.CartTTL}
	cartHandler := &cart.Handler{Svc: cartSvc}

	vendorSvc := &vendor.Service{Store: st, Validate: deps.Validator}
	vendorHandler := &vendor.Handler{Svc: vendorSvc}

	paystack := payment.Paystack{
		SecretKey: cfg.PaystackSecretKey,
		BaseURL:   cfg.PaystackBaseURL,
		Transport: resilience.HTTPClient{
			// Gateway calls join the OTLP traces alongside the server spans.
			Client: &http.Client{
				Timeout:   15 * time.Second,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("paystack"),
			MaxAttempts: 3,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
		},
	}
	checkoutSvc := &checkout.Service{
		Store:       st,
		CartSvc:     cartSvc,
		Engine:      engine,
		Provider:    paystack,
		Locker:      lock.Locker{R: deps.Redis},
		LockTTL:     cfg.CheckoutLockTTL,
		CallbackURL: cfg.PaystackCallbackURL,
		Events:      bus,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Store: st}
	orderAdmin := &order.AdminHandler{Store: st}

	paymentSvc := &payment.Service{Store: st}
	paymentHandler := &payment.Handler{Svc: paymentSvc}
	webhookHandler := payment.Webhook{
		Store:     st,
		Providers: map[string]payment.Provider{"paystack": paystack},
		Replay:    deps.Redis,
		ReplayTTL: cfg.WebhookReplayTTL,
		Events:    bus,
	}

	analyticsSvc := &analytics.Service{Q: st, R: deps.Redis, TTL: cfg.AnalyticsCacheTTL}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}
	eventsHandler := &events.Handler{Store: st}

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	checkoutLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "rl:checkout:"},
		Config: ratelimit.Config{
			Key:    rateKeyByUser,
			Window: time.Minute,
			Max:    10,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("checkout rate limit") },
	}
	authLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "rl:auth:"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return "ip:" + r.RemoteAddr },
			Window: time.Minute,
			Max:    20,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("auth rate limit") },
	}
	globalLimit := limiterstdlib.NewMiddleware(limiter.New(deps.LimiterStore, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(envInt("RATE_LIMIT_PER_MINUTE", 300)),
	}))

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: deps.DB, redis: deps.Redis},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(globalLimit.Handler)
		v.Use(authMW.Authenticate)

		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		v.Route("/auth", func(a chi.Router) {
			a.Use(authLimit.Middleware)
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.With(authMW.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{itemID}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{itemID}", cartHandler.RemoveItem)
				g.With(authMW.RequireAuth).Post("/merge", cartHandler.Merge)
			})
		})

		v.With(authMW.RequireAuth, idem.Middleware, checkoutLimit.Middleware).
			Post("/checkout", checkoutHandler.Create)

		v.Group(func(authed chi.Router) {
			authed.Use(authMW.RequireAuth)
			authed.Get("/orders", orderHandler.List)
			authed.Get("/orders/{id}", orderHandler.Get)
			authed.Get("/orders/session/{sessionID}", orderHandler.Session)
			authed.Get("/payments/{reference}", paymentHandler.Status)
			authed.Post("/vendors", vendorHandler.Onboard)
			authed.Get("/vendors/me", vendorHandler.Me)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireRole(auth.RoleAdmin))
			admin.Get("/vendors", vendorHandler.List)
			admin.Patch("/vendors/{id}/plan", vendorHandler.UpdatePlan)
			admin.Put("/vendors/{id}/gift", vendorHandler.GrantGift)
			admin.Delete("/vendors/{id}/gift", vendorHandler.RevokeGift)
			admin.Get("/vendors/{id}/orders", orderAdmin.VendorOrders)
			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			admin.Get("/analytics/sales", analyticsHandler.Sales)
			admin.Get("/analytics/vendors", analyticsHandler.TopVendors)
			admin.Get("/analytics/overview", analyticsHandler.Overview)
			admin.Get("/events/{aggregateID}", eventsHandler.Aggregate)
		})

		v.Post("/webhooks/payment/{provider}", webhookHandler.Handle)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func ratesFromConfig(cfg *config.Config) pricing.Rates {
	rates := pricing.DefaultRates()
	if cfg.VATPercent >= 0 {
		rates.VATPercent = cfg.VATPercent
	}
	if cfg.ServiceChargePercent >= 0 {
		rates.ServiceChargePercent = cfg.ServiceChargePercent
	}
	return rates
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func rateKeyByUser(r *http.Request) string {
	if userID, ok := common.UserID(r.Context()); ok {
		return "user:" + userID
	}
	return "ip:" + r.RemoteAddr
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
