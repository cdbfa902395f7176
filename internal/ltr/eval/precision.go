package eval

import "fmt"

// Precision computes P@K: the fraction of the top K ranked documents that
// are relevant. Lists shorter than K are padded conceptually with
// irrelevant documents, i.e. the denominator stays K.
type Precision struct {
	K int
}

func (p Precision) Name() string { return fmt.Sprintf("P@%d", p.K) }

func (p Precision) Evaluate(labels []int) float64 {
	if p.K <= 0 {
		return 0.0
	}
	hits := 0
	limit := p.K
	if limit > len(labels) {
		limit = len(labels)
	}
	for i := 0; i < limit; i++ {
		if labels[i] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(p.K)
}
