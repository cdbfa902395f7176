// Package store persists trained models in PostgreSQL. The ensemble is
// stored as its canonical JSON triples so external consumers can read it
// without this package.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcosfpr/adarank/internal/ltr/boosting"
	"github.com/marcosfpr/adarank/pkg/errors"
	"github.com/marcosfpr/adarank/pkg/postgres"
)

// Model is a trained ensemble together with its training metadata.
type Model struct {
	Name            string            `json:"name"`
	Metric          string            `json:"metric"`
	Status          string            `json:"status"`
	Rounds          int               `json:"rounds"`
	TrainingScore   float64           `json:"training_score"`
	ValidationScore float64           `json:"validation_score"`
	Ensemble        boosting.Ensemble `json:"ensemble"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Summary is the listing view of a model, without the ensemble payload.
type Summary struct {
	Name            string    `json:"name"`
	Metric          string    `json:"metric"`
	Status          string    `json:"status"`
	Rounds          int       `json:"rounds"`
	TrainingScore   float64   `json:"training_score"`
	ValidationScore float64   `json:"validation_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store reads and writes models in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Store on top of an existing postgres client.
func New(client *postgres.Client) *Store {
	return &Store{
		db:     client.DB,
		logger: slog.Default().With("component", "model-store"),
	}
}

// EnsureSchema creates the models table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ltr_models (
			name             TEXT PRIMARY KEY,
			metric           TEXT NOT NULL,
			status           TEXT NOT NULL,
			rounds           INT NOT NULL,
			training_score   DOUBLE PRECISION NOT NULL,
			validation_score DOUBLE PRECISION NOT NULL,
			ensemble         JSONB NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("creating ltr_models table: %w", err)
	}
	return nil
}

// Save upserts a model by name.
func (s *Store) Save(ctx context.Context, m *Model) error {
	ensemble, err := json.Marshal(m.Ensemble)
	if err != nil {
		return fmt.Errorf("marshaling ensemble for model %s: %w", m.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ltr_models (name, metric, status, rounds, training_score, validation_score, ensemble, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (name) DO UPDATE SET
			metric = EXCLUDED.metric,
			status = EXCLUDED.status,
			rounds = EXCLUDED.rounds,
			training_score = EXCLUDED.training_score,
			validation_score = EXCLUDED.validation_score,
			ensemble = EXCLUDED.ensemble,
			created_at = now()`,
		m.Name, m.Metric, m.Status, m.Rounds, m.TrainingScore, m.ValidationScore, ensemble,
	)
	if err != nil {
		return fmt.Errorf("saving model %s: %w", m.Name, err)
	}
	s.logger.Info("model saved",
		"model", m.Name,
		"metric", m.Metric,
		"rounds", m.Rounds,
		"training_score", m.TrainingScore,
	)
	return nil
}

// Get loads a model by name. Returns errors.ErrModelNotFound when absent.
func (s *Store) Get(ctx context.Context, name string) (*Model, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, metric, status, rounds, training_score, validation_score, ensemble, created_at
		FROM ltr_models WHERE name = $1`, name)

	var m Model
	var ensemble []byte
	err := row.Scan(&m.Name, &m.Metric, &m.Status, &m.Rounds, &m.TrainingScore, &m.ValidationScore, &ensemble, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", errors.ErrModelNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", name, err)
	}
	if err := json.Unmarshal(ensemble, &m.Ensemble); err != nil {
		return nil, fmt.Errorf("unmarshaling ensemble for model %s: %w", name, err)
	}
	return &m, nil
}

// List returns summaries of all stored models, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, metric, status, rounds, training_score, validation_score, created_at
		FROM ltr_models ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Name, &s.Metric, &s.Status, &s.Rounds, &s.TrainingScore, &s.ValidationScore, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning model row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Delete removes a model by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ltr_models WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting model %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", errors.ErrModelNotFound, name)
	}
	return nil
}
