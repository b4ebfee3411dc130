package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"grocery-checkout/internal/assistant"
	"grocery-checkout/internal/auth"
	"grocery-checkout/internal/checkout"
	"grocery-checkout/internal/config"
	"grocery-checkout/internal/database"
	"grocery-checkout/internal/events"
	"grocery-checkout/internal/idempotency"
	"grocery-checkout/internal/logging"
	"grocery-checkout/internal/middleware"
	"grocery-checkout/internal/pricing"
	"grocery-checkout/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm/logger"
)

func main() {
	cfg, envFile, err := config.Load()
	if err != nil {
		// No logger config yet; fall back to defaults to report it.
		fallback := logging.New("info", false)
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	if !envFile {
		log.Warn().Msg("no .env file found, using process environment")
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	sqlLog := logger.Warn
	if cfg.SQLDebug {
		sqlLog = logger.Info
	}
	db, err := database.Connect(cfg.DBDSN, log, sqlLog)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}

	publisher := newPublisher(cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	svc := checkout.NewService(db, pricing.DeliveryPolicy{
		FreeThreshold: cfg.FreeShippingThreshold,
		FlatFee:       cfg.DeliveryFee,
	}, publisher, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := server.Deps{
		DB:             db,
		Checkout:       svc,
		Tokens:         auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
		Limiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimitRPS),
			Burst: cfg.RateLimitBurst,
		}),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed, idempotency keys will be skipped until it recovers")
		}
		deps.Guard = idempotency.NewGuard(rdb, cfg.IdempotencyTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("idempotency guard enabled")
	}

	if cfg.GeminiAPIKey != "" {
		agent, err := assistant.NewAgent(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, svc, log)
		if err != nil {
			log.Error().Err(err).Msg("assistant disabled")
		} else {
			defer agent.Close()
			deps.Agent = agent
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("base_url", cfg.BaseURL).Str("addr", httpServer.Addr).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newPublisher(cfg *config.Config, log zerolog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info().Msg("KAFKA_BROKERS not set, order events are not published")
		return events.NopPublisher{}
	}
	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaOrderTopic).Msg("publishing order events to kafka")
	return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaOrderTopic))
}
