package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unimart-ng/backend-unimart/internal/app"
	"github.com/unimart-ng/backend-unimart/internal/config"
	"github.com/unimart-ng/backend-unimart/internal/events"
	"github.com/unimart-ng/backend-unimart/internal/obs"
)

// The worker drains domain-event tasks the API enqueues: cache invalidation
// after settlements and structured audit logging for every event.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	redisOpt, err := app.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 5),
	})

	h := eventHandler{redis: redisClient, logger: logger}
	mux := asynq.NewServeMux()
	mux.HandleFunc(events.TaskType(events.TopicCheckoutCreated), h.handle)
	mux.HandleFunc(events.TaskType(events.TopicOrderPaid), h.handle)
	mux.HandleFunc(events.TaskType(events.TopicPaymentFailed), h.handle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

type eventHandler struct {
	redis  *redis.Client
	logger zerolog.Logger
}

func (h eventHandler) handle(ctx context.Context, task *asynq.Task) error {
	topic := events.TopicFromTaskType(task.Type())
	payload := map[string]any{}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		h.logger.Warn().Str("topic", topic).Err(err).Msg("malformed event payload")
		return nil
	}

	event := h.logger.Info().Str("topic", topic)
	for key, value := range payload {
		event = event.Interface(key, value)
	}
	event.Msg("domain event")

	// Settled money moves the analytics aggregates, so drop their cache.
	if topic == events.TopicOrderPaid {
		return h.invalidateAnalytics(ctx)
	}
	return nil
}

func (h eventHandler) invalidateAnalytics(ctx context.Context) error {
	if h.redis == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := h.redis.Scan(ctx, cursor, "an:*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := h.redis.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
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

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
