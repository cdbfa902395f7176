// Command scorer starts the model scoring service.
//
// The service loads trained ensembles from PostgreSQL, caches them in Redis,
// and ranks incoming documents via POST /v1/rank (or scores a single document
// via POST /v1/score). A Kafka consumer on the model-events topic invalidates
// cached models when the trainer publishes an update. Redis is optional: if
// it is unreachable at startup, the service falls back to store lookups
// guarded by request coalescing.
//
// Usage:
//
//	go run ./cmd/scorer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcosfpr/adarank/internal/scorer"
	"github.com/marcosfpr/adarank/internal/scorer/handler"
	"github.com/marcosfpr/adarank/internal/scorer/modelcache"
	"github.com/marcosfpr/adarank/internal/trainer/store"
	"github.com/marcosfpr/adarank/pkg/config"
	"github.com/marcosfpr/adarank/pkg/health"
	"github.com/marcosfpr/adarank/pkg/kafka"
	"github.com/marcosfpr/adarank/pkg/logger"
	"github.com/marcosfpr/adarank/pkg/metrics"
	"github.com/marcosfpr/adarank/pkg/middleware"
	"github.com/marcosfpr/adarank/pkg/postgres"
	"github.com/marcosfpr/adarank/pkg/ratelimit"
	"github.com/marcosfpr/adarank/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting scorer service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, model caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		slog.Info("connected to redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	modelStore := store.New(db)
	cache := modelcache.New(modelStore, redisClient, cfg.Redis, m)

	eventConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ModelEvents, scorer.HandleModelEvent(cache))
	go func() {
		if err := eventConsumer.Start(ctx); err != nil {
			slog.Error("model event consumer error", "error", err)
		}
	}()
	slog.Info("model event consumer started", "topic", cfg.Kafka.Topics.ModelEvents)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := handler.New(cache, m, cfg.Scoring.MaxDocuments)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var root http.Handler = mux
	root = middleware.Timeout(cfg.Scoring.RequestTimeout)(root)
	if cfg.Scoring.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Scoring.RateLimit, cfg.Scoring.RateLimitWindow)
		root = middleware.RateLimit(limiter)(root)
	}
	if m != nil {
		root = middleware.Metrics(m)(root)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			shutdownCtx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			if err := metricsShutdown(shutdownCtx2); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("scorer service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("scorer service stopped")
}
