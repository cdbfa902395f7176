// Package trainer defines the training job schema, validates submissions,
// runs AdaRank training for each job, and persists the resulting models.
package trainer

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcosfpr/adarank/internal/ltr/boosting"
)

// TrainJob is the JSON body accepted by the trainer HTTP endpoint and the
// Kafka message payload on the training-jobs topic. Zero-valued
// hyperparameters fall back to the service defaults.
type TrainJob struct {
	Model          string  `json:"model"`
	DataPath       string  `json:"data_path"`
	ValidationPath string  `json:"validation_path,omitempty"`
	Metric         string  `json:"metric,omitempty"`
	MaxRounds      int     `json:"max_rounds,omitempty"`
	Patience       int     `json:"patience,omitempty"`
	Tolerance      float64 `json:"tolerance,omitempty"`
	Features       []int   `json:"features,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// TrainResponse is returned to the caller after a job is accepted.
type TrainResponse struct {
	Model  string `json:"model"`
	Status string `json:"status"`
}

// ModelEvent is published on the model-events topic when a training run
// completes; scorers use it to invalidate their caches.
type ModelEvent struct {
	Model           string    `json:"model"`
	Status          string    `json:"status"`
	Rounds          int       `json:"rounds"`
	TrainingScore   float64   `json:"training_score"`
	ValidationScore float64   `json:"validation_score"`
	TrainedAt       time.Time `json:"trained_at"`
}

// ProgressEvent is published on the training-progress topic after every
// boosting round.
type ProgressEvent struct {
	Model string              `json:"model"`
	Stats boosting.RoundStats `json:"stats"`
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

const maxModelNameLength = 255

// ValidateJob checks that a submitted job names a model and a dataset and
// that every explicit hyperparameter is in range.
func ValidateJob(job *TrainJob) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(job.Model)
	if name == "" {
		errs["model"] = "model name is required"
	} else if len(name) > maxModelNameLength {
		errs["model"] = fmt.Sprintf("model name must be at most %d characters", maxModelNameLength)
	}
	if strings.TrimSpace(job.DataPath) == "" {
		errs["data_path"] = "data_path is required"
	}
	if job.MaxRounds < 0 {
		errs["max_rounds"] = "max_rounds must be positive"
	}
	if job.Patience < 0 {
		errs["patience"] = "patience must be positive"
	}
	if job.Tolerance < 0 || job.Tolerance >= 1 {
		errs["tolerance"] = "tolerance must be in [0, 1)"
	}
	for _, f := range job.Features {
		if f < 1 {
			errs["features"] = "feature indices must be positive"
			break
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
