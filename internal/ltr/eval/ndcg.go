package eval

import (
	"fmt"
	"math"
	"sort"
)

// NDCG computes normalized discounted cumulative gain at cutoff K, with the
// exponential gain 2^label - 1 and log2 position discount. The ideal DCG is
// taken over the same label multiset sorted by label descending; a query
// with no positive label scores 0.
type NDCG struct {
	K int
}

func (n NDCG) Name() string { return fmt.Sprintf("NDCG@%d", n.K) }

func (n NDCG) Evaluate(labels []int) float64 {
	ideal := make([]int, len(labels))
	copy(ideal, labels)
	sort.Sort(sort.Reverse(sort.IntSlice(ideal)))

	idealDCG := dcg(ideal, n.K)
	if idealDCG == 0 {
		return 0.0
	}
	return dcg(labels, n.K) / idealDCG
}

func dcg(labels []int, k int) float64 {
	if k <= 0 || k > len(labels) {
		k = len(labels)
	}
	sum := 0.0
	for i := 0; i < k; i++ {
		gain := math.Exp2(float64(labels[i])) - 1
		sum += gain / math.Log2(float64(i)+2)
	}
	return sum
}
