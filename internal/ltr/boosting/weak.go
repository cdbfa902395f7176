// Package boosting implements the AdaRank training loop: single-feature
// weak rankers, the boosted ensemble, the cached per-feature orderings the
// induction step runs on, and the engine that ties them together.
package boosting

import (
	"sort"

	"github.com/marcosfpr/adarank/internal/ltr"
)

// WeakRanker orders documents by the raw value of a single feature.
// Orientation is fixed at induction time: descending ranks high values
// first, ascending the reverse. Immutable once created.
type WeakRanker struct {
	Feature   int  `json:"feature"`
	Ascending bool `json:"ascending"`
}

// Score returns the oriented feature value for one document.
func (w WeakRanker) Score(dp ltr.DataPoint) float64 {
	v := dp.Feature(w.Feature)
	if w.Ascending {
		return -v
	}
	return v
}

// Rank returns a new RankList ordered by the weak ranker's score, ties
// broken by original document order.
func (w WeakRanker) Rank(rl *ltr.RankList) *ltr.RankList {
	return rl.Permute(orderByScore(rl, w.Score))
}

// orderByScore computes the permutation that sorts rl descending by score,
// stably, so equal scores keep their original relative order.
func orderByScore(rl *ltr.RankList, score func(ltr.DataPoint) float64) []int {
	scores := make([]float64, rl.Len())
	for i, dp := range rl.Points {
		scores[i] = score(dp)
	}
	perm := make([]int, rl.Len())
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return scores[perm[a]] > scores[perm[b]]
	})
	return perm
}
