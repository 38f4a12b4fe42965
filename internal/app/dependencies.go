package app

import (
	"context"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/unimart-ng/backend-unimart/internal/config"
	"github.com/unimart-ng/backend-unimart/internal/obs"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

// Dependencies bundles the shared infrastructure both binaries boot from.
type Dependencies struct {
	DB           *pgxpool.Pool
	Redis        *redis.Client
	Store        *store.Store
	Validator    *validator.Validate
	LimiterStore limiter.Store
	Tasks        *asynq.Client
}

// Options tweaks bootstrap behaviour per binary.
type Options struct {
	AppName        string
	RunMigrations  bool
	InstrumentObs  bool
	WithTaskClient bool
	WithLimiter    bool
}

// New connects the database and Redis, optionally applies migrations, and
// wires the shared clients.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	appName := opts.AppName
	if appName == "" {
		appName = "unimart-api"
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("app: connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: ping database: %w", err)
	}
	if opts.RunMigrations {
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			pool.Close()
			return nil, err
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if opts.InstrumentObs {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			return nil, fmt.Errorf("app: instrument redis tracing: %w", err)
		}
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			return nil, fmt.Errorf("app: instrument redis metrics: %w", err)
		}
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("app: ping redis: %w", err)
	}

	deps := &Dependencies{
		DB:        pool,
		Redis:     redisClient,
		Store:     store.New(pool),
		Validator: validator.New(),
	}
	if opts.WithLimiter {
		limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "rl:" + appName,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("app: init limiter store: %w", err)
		}
		deps.LimiterStore = limiterStore
	}
	if opts.WithTaskClient {
		redisOpt, err := AsynqRedisOpt(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Tasks = asynq.NewClient(redisOpt)
	}
	return deps, nil
}

// AsynqRedisOpt converts the configured Redis URL into asynq's client options.
func AsynqRedisOpt(redisURL string) (asynq.RedisClientOpt, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("app: parse redis url: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:     parsed.Addr,
		Username: parsed.Username,
		Password: parsed.Password,
		DB:       parsed.DB,
	}, nil
}

// Close releases every client the bundle holds.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Tasks != nil {
		_ = d.Tasks.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
