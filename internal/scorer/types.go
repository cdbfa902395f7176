// Package scorer defines the scoring API types and the Kafka handler that
// keeps the scorer's model cache coherent with newly trained models.
package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/internal/scorer/modelcache"
	"github.com/marcosfpr/adarank/internal/trainer"
	"github.com/marcosfpr/adarank/pkg/errors"
	"github.com/marcosfpr/adarank/pkg/kafka"
)

// Document is one candidate to score: an identifier plus a sparse feature
// map keyed by the 1-based feature index. Indices a document omits score as
// 0.0.
type Document struct {
	ID       string             `json:"id"`
	Features map[string]float64 `json:"features"`
}

// RankRequest is the JSON body accepted by POST /v1/rank.
type RankRequest struct {
	Model     string     `json:"model"`
	Documents []Document `json:"documents"`
}

// ScoreRequest is the JSON body accepted by POST /v1/score.
type ScoreRequest struct {
	Model    string   `json:"model"`
	Document Document `json:"document"`
}

// ScoredDocument is one ranked result.
type ScoredDocument struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RankResponse is the ordered result of a rank request.
type RankResponse struct {
	Model   string           `json:"model"`
	Results []ScoredDocument `json:"results"`
}

// ToDataPoint converts a request document into the core representation.
// Feature keys must be positive integers.
func (d Document) ToDataPoint() (ltr.DataPoint, error) {
	dp := ltr.DataPoint{Description: d.ID}
	for key, value := range d.Features {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || idx < 1 {
			return dp, fmt.Errorf("%w: feature index %q must be a positive integer", errors.ErrInvalidInput, key)
		}
		if idx > len(dp.Features) {
			grown := make([]float64, idx)
			copy(grown, dp.Features)
			dp.Features = grown
		}
		dp.Features[idx-1] = value
	}
	return dp, nil
}

// HandleModelEvent returns a Kafka MessageHandler that invalidates the
// model cache whenever a training run completes.
func HandleModelEvent(cache *modelcache.ModelCache) kafka.MessageHandler {
	logger := slog.Default().With("component", "model-event-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[trainer.ModelEvent](value)
		if err != nil {
			logger.Error("failed to decode model event", "key", string(key), "error", err)
			return nil
		}
		logger.Info("model retrained, invalidating cache",
			"model", event.Model,
			"status", event.Status,
			"rounds", event.Rounds,
		)
		cache.Invalidate(ctx, event.Model)
		return nil
	}
}
