package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/internal/ltr/boosting"
	"github.com/marcosfpr/adarank/internal/ltr/eval"
	"github.com/marcosfpr/adarank/internal/ltr/svmlight"
	"github.com/marcosfpr/adarank/internal/trainer/store"
	"github.com/marcosfpr/adarank/pkg/config"
	"github.com/marcosfpr/adarank/pkg/kafka"
	"github.com/marcosfpr/adarank/pkg/metrics"
	"github.com/marcosfpr/adarank/pkg/resilience"
	"github.com/marcosfpr/adarank/pkg/tracing"
)

// Worker runs training jobs consumed from Kafka: it loads the datasets,
// fits an AdaRank ensemble, persists the model, and announces completion on
// the model-events topic.
type Worker struct {
	store     *store.Store
	events    *kafka.Producer
	collector *ProgressCollector
	metrics   *metrics.Metrics
	cfg       config.TrainingConfig
	logger    *slog.Logger
}

// NewWorker wires a Worker. collector and m may be nil; progress events and
// Prometheus metrics are then skipped.
func NewWorker(st *store.Store, events *kafka.Producer, collector *ProgressCollector, m *metrics.Metrics, cfg config.TrainingConfig) *Worker {
	return &Worker{
		store:     st,
		events:    events,
		collector: collector,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "train-worker"),
	}
}

// HandleMessage returns a Kafka MessageHandler that executes each TrainJob.
// Malformed payloads are logged and skipped; job failures are recorded but
// not returned, so the consumer keeps its offset moving.
func (w *Worker) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		job, err := kafka.DecodeJSON[TrainJob](value)
		if err != nil {
			w.logger.Error("failed to decode training job", "key", string(key), "error", err)
			return nil
		}
		if err := ValidateJob(&job); err != nil {
			w.logger.Error("invalid training job", "model", job.Model, "error", err)
			return nil
		}
		if err := w.Run(ctx, &job); err != nil {
			w.logger.Error("training job failed", "model", job.Model, "error", err)
			if w.metrics != nil {
				w.metrics.TrainingJobsTotal.WithLabelValues("failed").Inc()
			}
		}
		return nil
	}
}

// Run executes one training job synchronously.
func (w *Worker) Run(ctx context.Context, job *TrainJob) error {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "train", job.Model)
	defer span.End()

	dataset, validation, err := w.loadDatasets(job)
	if err != nil {
		return err
	}
	span.SetAttr("queries", dataset.QueryCount())
	span.SetAttr("documents", dataset.DocumentCount())

	opts, err := w.options(job, validation)
	if err != nil {
		return err
	}

	var result *boosting.FitResult
	err = resilience.WithTimeout(ctx, w.cfg.JobTimeout, "train-job", func(ctx context.Context) error {
		var fitErr error
		result, fitErr = boosting.New(dataset, opts).Fit(ctx)
		return fitErr
	})
	if err != nil {
		return fmt.Errorf("fitting model %s: %w", job.Model, err)
	}

	model := &store.Model{
		Name:            job.Model,
		Metric:          opts.Metric.Name(),
		Status:          string(result.Status),
		Rounds:          result.Rounds,
		TrainingScore:   result.TrainingScore,
		ValidationScore: result.ValidationScore,
		Ensemble:        *result.Ensemble,
	}
	// The broker may redeliver the job; saving is idempotent, so retrying
	// the write is safe.
	if err := resilience.Retry(ctx, "model-save", resilience.RetryConfig{}, func() error {
		return w.store.Save(ctx, model)
	}); err != nil {
		return fmt.Errorf("persisting model %s: %w", job.Model, err)
	}

	w.record(job, result, opts.Metric.Name(), time.Since(start))

	if w.events != nil {
		event := ModelEvent{
			Model:           job.Model,
			Status:          string(result.Status),
			Rounds:          result.Rounds,
			TrainingScore:   result.TrainingScore,
			ValidationScore: result.ValidationScore,
			TrainedAt:       time.Now().UTC(),
		}
		if err := w.events.Publish(ctx, kafka.Event{Key: job.Model, Value: event}); err != nil {
			w.logger.Error("failed to publish model event", "model", job.Model, "error", err)
		}
	}

	w.logger.Info("training job completed",
		"model", job.Model,
		"status", result.Status,
		"rounds", result.Rounds,
		"training_score", result.TrainingScore,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// loadDatasets resolves and parses the training and optional validation
// files. Relative paths are resolved against the configured data dir.
func (w *Worker) loadDatasets(job *TrainJob) (dataset, validation ltr.DataSet, err error) {
	dataset, err = svmlight.Load(w.resolve(job.DataPath))
	if err != nil {
		return nil, nil, err
	}
	if job.ValidationPath != "" {
		validation, err = svmlight.Load(w.resolve(job.ValidationPath))
		if err != nil {
			return nil, nil, err
		}
	}
	return dataset, validation, nil
}

func (w *Worker) resolve(path string) string {
	if filepath.IsAbs(path) || w.cfg.DataDir == "" {
		return path
	}
	return filepath.Join(w.cfg.DataDir, path)
}

// options merges job overrides over the service defaults.
func (w *Worker) options(job *TrainJob, validation ltr.DataSet) (boosting.Options, error) {
	metricName := job.Metric
	if strings.TrimSpace(metricName) == "" {
		metricName = w.cfg.Metric
	}
	metric, err := eval.New(metricName)
	if err != nil {
		return boosting.Options{}, err
	}

	opts := boosting.Options{
		Metric:         metric,
		MaxRounds:      w.cfg.MaxRounds,
		Patience:       w.cfg.Patience,
		Tolerance:      w.cfg.Tolerance,
		MaxConsecutive: w.cfg.MaxConsecutive,
		Workers:        w.cfg.Workers,
		Features:       job.Features,
		Validation:     validation,
	}
	if job.MaxRounds > 0 {
		opts.MaxRounds = job.MaxRounds
	}
	if job.Patience > 0 {
		opts.Patience = job.Patience
	}
	if job.Tolerance > 0 {
		opts.Tolerance = job.Tolerance
	}
	opts.OnRound = func(stats boosting.RoundStats) {
		if w.metrics != nil {
			w.metrics.TrainingRoundsTotal.Inc()
		}
		if w.collector != nil {
			w.collector.Track(ProgressEvent{Model: job.Model, Stats: stats})
		}
	}
	return opts, nil
}

func (w *Worker) record(job *TrainJob, result *boosting.FitResult, metricName string, elapsed time.Duration) {
	if w.metrics == nil {
		return
	}
	w.metrics.TrainingJobsTotal.WithLabelValues(string(result.Status)).Inc()
	w.metrics.TrainingDuration.WithLabelValues(metricName).Observe(elapsed.Seconds())
	w.metrics.TrainingScore.WithLabelValues(job.Model, "training").Set(result.TrainingScore)
	if job.ValidationPath != "" {
		w.metrics.TrainingScore.WithLabelValues(job.Model, "validation").Set(result.ValidationScore)
	}
	if result.DegenerateQueries > 0 {
		w.metrics.DegenerateQueriesTotal.Add(float64(result.DegenerateQueries))
	}
	if result.ClampEvents > 0 {
		w.metrics.ConfidenceClampsTotal.Add(float64(result.ClampEvents))
	}
}
