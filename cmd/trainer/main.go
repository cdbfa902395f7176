// Command trainer starts the model training service.
//
// The service accepts training jobs via POST /v1/train, publishes them to a
// Kafka topic, and runs them through a consumer-driven worker: SVMLight
// datasets are loaded from disk, an AdaRank ensemble is fitted, and the
// resulting model is persisted in PostgreSQL. Completed runs are announced
// on the model-events topic. Health endpoints live at GET /health/live and
// GET /health/ready.
//
// Usage:
//
//	go run ./cmd/trainer [-config configs/development.yaml]
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

	"github.com/marcosfpr/adarank/internal/trainer"
	"github.com/marcosfpr/adarank/internal/trainer/handler"
	"github.com/marcosfpr/adarank/internal/trainer/store"
	"github.com/marcosfpr/adarank/pkg/config"
	"github.com/marcosfpr/adarank/pkg/health"
	"github.com/marcosfpr/adarank/pkg/kafka"
	"github.com/marcosfpr/adarank/pkg/logger"
	"github.com/marcosfpr/adarank/pkg/metrics"
	"github.com/marcosfpr/adarank/pkg/middleware"
	"github.com/marcosfpr/adarank/pkg/postgres"
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
	slog.Info("starting trainer service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modelStore := store.New(db)
	if err := modelStore.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure model schema", "error", err)
		os.Exit(1)
	}

	jobProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TrainingJobs)
	defer jobProducer.Close()
	eventProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ModelEvents)
	defer eventProducer.Close()
	progressProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TrainingProgress)
	defer progressProducer.Close()
	slog.Info("kafka producers initialized",
		"jobs_topic", cfg.Kafka.Topics.TrainingJobs,
		"events_topic", cfg.Kafka.Topics.ModelEvents,
	)

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	collector := trainer.NewProgressCollector(progressProducer, 4096)
	collector.Start(ctx)
	defer collector.Close()

	worker := trainer.NewWorker(modelStore, eventProducer, collector, m, cfg.Training)
	jobConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.TrainingJobs, worker.HandleMessage())
	go func() {
		if err := jobConsumer.Start(ctx); err != nil {
			slog.Error("job consumer error", "error", err)
		}
	}()
	slog.Info("training job consumer started", "topic", cfg.Kafka.Topics.TrainingJobs)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(jobProducer, modelStore)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var root http.Handler = mux
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

	slog.Info("trainer service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("trainer service stopped")
}
