package boosting

import (
	"fmt"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/pkg/errors"
)

// Stump is one boosting round's contribution: a weak ranker and its
// confidence weight. Confidence may be negative.
type Stump struct {
	WeakRanker
	Confidence float64 `json:"confidence"`
}

// Ensemble is the ordered sequence of stumps produced by training.
// Append-only while the engine runs, read-only afterwards. The JSON form is
// the canonical serialization consumed by the model store and the CLI.
type Ensemble struct {
	Stumps []Stump `json:"stumps"`
}

// Len returns the number of boosting rounds in the ensemble.
func (e *Ensemble) Len() int {
	return len(e.Stumps)
}

// Score computes the final model score for one document: the confidence
// weighted sum of every stump's oriented feature value. Features the
// document does not carry contribute 0.
func (e *Ensemble) Score(dp ltr.DataPoint) float64 {
	score := 0.0
	for _, s := range e.Stumps {
		score += s.Confidence * s.WeakRanker.Score(dp)
	}
	return score
}

// Rank returns a new RankList ordered descending by ensemble score, ties
// broken by original document order.
func (e *Ensemble) Rank(rl *ltr.RankList) *ltr.RankList {
	return rl.Permute(orderByScore(rl, e.Score))
}

// Prefix returns an ensemble truncated to its first n stumps. The stumps
// slice is shared, not copied; the result must be treated as read-only.
func (e *Ensemble) Prefix(n int) *Ensemble {
	if n > len(e.Stumps) {
		n = len(e.Stumps)
	}
	return &Ensemble{Stumps: e.Stumps[:n]}
}

// Validate checks the ensemble is usable for scoring.
func (e *Ensemble) Validate() error {
	if e == nil || len(e.Stumps) == 0 {
		return errors.ErrNoRankers
	}
	for _, s := range e.Stumps {
		if s.Feature < 1 {
			return fmt.Errorf("%w: stump has feature index %d", errors.ErrInvalidInput, s.Feature)
		}
	}
	return nil
}
