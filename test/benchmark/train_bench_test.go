package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/internal/ltr/boosting"
	"github.com/marcosfpr/adarank/internal/ltr/eval"
)

// syntheticCorpus builds a reproducible corpus where feature values are
// noisy functions of the label, so training has real signal to find.
func syntheticCorpus(queries, docsPerQuery, features int) ltr.DataSet {
	rng := rand.New(rand.NewSource(42))
	ds := make(ltr.DataSet, 0, queries)
	for q := 0; q < queries; q++ {
		points := make([]ltr.DataPoint, docsPerQuery)
		for d := 0; d < docsPerQuery; d++ {
			label := rng.Intn(3)
			fv := make([]float64, features)
			for f := range fv {
				fv[f] = float64(label) + rng.NormFloat64()
			}
			points[d] = ltr.DataPoint{
				Label:    label,
				QueryID:  int64(q + 1),
				Features: fv,
			}
		}
		ds = append(ds, ltr.NewRankList(points))
	}
	return ds
}

func BenchmarkFit(b *testing.B) {
	shapes := []struct {
		queries, docs, features int
	}{
		{10, 20, 5},
		{50, 30, 10},
		{100, 50, 25},
	}
	for _, s := range shapes {
		name := fmt.Sprintf("q%d_d%d_f%d", s.queries, s.docs, s.features)
		ds := syntheticCorpus(s.queries, s.docs, s.features)
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, err := boosting.New(ds, boosting.Options{MaxRounds: 10}).Fit(context.Background())
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkFitWorkers(b *testing.B) {
	ds := syntheticCorpus(50, 30, 20)
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				opts := boosting.Options{MaxRounds: 5, Workers: workers}
				_, err := boosting.New(ds, opts).Fit(context.Background())
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEnsembleScore(b *testing.B) {
	ds := syntheticCorpus(20, 30, 10)
	result, err := boosting.New(ds, boosting.Options{MaxRounds: 10}).Fit(context.Background())
	if err != nil {
		b.Fatal(err)
	}
	dp := ds[0].Points[0]

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = result.Ensemble.Score(dp)
	}
}

func BenchmarkEvaluators(b *testing.B) {
	labels := make([]int, 100)
	rng := rand.New(rand.NewSource(7))
	for i := range labels {
		labels[i] = rng.Intn(3)
	}

	evaluators := []eval.Evaluator{
		eval.MAP{},
		eval.NDCG{K: 10},
		eval.Precision{K: 10},
	}
	for _, ev := range evaluators {
		b.Run(ev.Name(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = ev.Evaluate(labels)
			}
		})
	}
}
