// Package eval implements the relevance metrics that drive weak-ranker
// selection and training-loop control: MAP, NDCG@k, and P@k. Every metric
// is computed from a ranked sequence of labels alone, so the same
// implementation scores weak-ranker orderings and full-ensemble orderings.
package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/pkg/errors"
)

// Evaluator scores a single query's ranking. The input is the sequence of
// relevance labels in ranked order; the result is in [0,1]. Implementations
// must be pure and deterministic so they can be swapped freely and shared
// across goroutines.
type Evaluator interface {
	// Name returns the canonical metric name, e.g. "MAP" or "NDCG@10".
	Name() string
	// Evaluate scores one ranked label sequence. A query with no relevant
	// label scores 0, never NaN.
	Evaluate(labels []int) float64
}

// EvaluateRankList scores a RankList in its current order.
func EvaluateRankList(e Evaluator, rl *ltr.RankList) float64 {
	return e.Evaluate(rl.Labels())
}

// EvaluateDataSet averages the metric across all queries of the corpus in
// their current order. Degenerate queries contribute 0 to the average.
func EvaluateDataSet(e Evaluator, ds ltr.DataSet) (float64, error) {
	if ds.QueryCount() == 0 {
		return 0, errors.ErrEmptyDataSet
	}
	total := 0.0
	for _, rl := range ds {
		total += EvaluateRankList(e, rl)
	}
	return total / float64(ds.QueryCount()), nil
}

// New parses a metric name into an Evaluator. Recognized forms are "map",
// "ndcg@k", and "p@k" (case-insensitive); "ndcg" and "p" default to k=10.
func New(name string) (Evaluator, error) {
	base := strings.ToLower(strings.TrimSpace(name))
	cutoff := 0
	if at := strings.IndexByte(base, '@'); at >= 0 {
		k, err := strconv.Atoi(base[at+1:])
		if err != nil || k < 1 {
			return nil, fmt.Errorf("%w: metric cutoff in %q", errors.ErrInvalidInput, name)
		}
		cutoff = k
		base = base[:at]
	}

	switch base {
	case "map":
		return MAP{}, nil
	case "ndcg":
		if cutoff == 0 {
			cutoff = defaultCutoff
		}
		return NDCG{K: cutoff}, nil
	case "p", "precision":
		if cutoff == 0 {
			cutoff = defaultCutoff
		}
		return Precision{K: cutoff}, nil
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", errors.ErrInvalidInput, name)
	}
}

const defaultCutoff = 10
