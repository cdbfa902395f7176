package boosting

import "github.com/marcosfpr/adarank/internal/ltr"

// orderingCache holds, for every candidate feature and both orientations,
// the label sequence each query produces when sorted by that feature.
// Rankings never change across boosting rounds (only the query weights do),
// so they are computed once up front and the induction loop reduces to a
// weighted sum over cached label slices. The cache is immutable after
// construction and safe for concurrent reads.
type orderingCache struct {
	features []int
	// labels[featurePos][orientation][query] is a ranked label sequence.
	// Orientation 0 is descending, 1 is ascending.
	labels [][2][][]int
}

func newOrderingCache(ds ltr.DataSet, features []int) *orderingCache {
	c := &orderingCache{
		features: features,
		labels:   make([][2][][]int, len(features)),
	}
	for pos, feature := range features {
		desc := make([][]int, len(ds))
		asc := make([][]int, len(ds))
		for q, rl := range ds {
			desc[q] = rankedLabels(rl, WeakRanker{Feature: feature})
			asc[q] = rankedLabels(rl, WeakRanker{Feature: feature, Ascending: true})
		}
		c.labels[pos] = [2][][]int{desc, asc}
	}
	return c
}

// queryLabels returns query q's label sequence under the given feature
// position and orientation.
func (c *orderingCache) queryLabels(featurePos int, ascending bool, q int) []int {
	orient := 0
	if ascending {
		orient = 1
	}
	return c.labels[featurePos][orient][q]
}

func rankedLabels(rl *ltr.RankList, w WeakRanker) []int {
	perm := orderByScore(rl, w.Score)
	labels := make([]int, len(perm))
	for i, p := range perm {
		labels[i] = rl.Points[p].Label
	}
	return labels
}
