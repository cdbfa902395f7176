package boosting

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/internal/ltr/eval"
	pkgerrors "github.com/marcosfpr/adarank/pkg/errors"
)

func rankList(qid int64, labels []int, features ...[]float64) *ltr.RankList {
	points := make([]ltr.DataPoint, len(labels))
	for i, label := range labels {
		fv := make([]float64, len(features))
		for f, col := range features {
			fv[f] = col[i]
		}
		points[i] = ltr.DataPoint{Label: label, QueryID: qid, Features: fv}
	}
	return ltr.NewRankList(points)
}

// oppositeCorpus is two queries that no single orientation of feature 1 can
// serve at once: descending order is perfect for query 1 and worst for
// query 2, ascending the other way around. Feature 2 mirrors feature 1.
// Every candidate scores the same weighted metric under uniform weights, so
// round one also exercises the deterministic tie-break.
func oppositeCorpus() ltr.DataSet {
	return ltr.DataSet{
		rankList(1, []int{1, 0, 0}, []float64{3, 2, 1}, []float64{1, 2, 3}),
		rankList(2, []int{1, 0, 0}, []float64{1, 2, 3}, []float64{3, 2, 1}),
	}
}

// perfectCorpus is ranked perfectly by feature 1 descending on every query.
func perfectCorpus() ltr.DataSet {
	return ltr.DataSet{
		rankList(1, []int{2, 1, 0}, []float64{9, 5, 1}),
		rankList(2, []int{1, 0, 0}, []float64{7, 3, 2}),
	}
}

func TestFitEmptyDataSet(t *testing.T) {
	_, err := New(nil, Options{}).Fit(context.Background())
	if !errors.Is(err, pkgerrors.ErrEmptyDataSet) {
		t.Errorf("Fit on empty corpus = %v, want ErrEmptyDataSet", err)
	}
}

func TestFitNoFeatures(t *testing.T) {
	ds := ltr.DataSet{rankList(1, []int{1, 0})}
	_, err := New(ds, Options{}).Fit(context.Background())
	if !errors.Is(err, pkgerrors.ErrNoFeatures) {
		t.Errorf("Fit on featureless corpus = %v, want ErrNoFeatures", err)
	}
}

func TestFitCancelledBeforeFirstRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(perfectCorpus(), Options{}).Fit(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fit with cancelled context = %v, want context.Canceled", err)
	}
}

// TestFitConverges verifies that a corpus one feature ranks perfectly
// converges in a single round, and that the perfect weighted score shows up
// as a clamped (finite) confidence.
func TestFitConverges(t *testing.T) {
	result, err := New(perfectCorpus(), Options{}).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if result.Status != StatusConverged {
		t.Errorf("status = %s, want %s", result.Status, StatusConverged)
	}
	if result.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", result.Rounds)
	}
	if math.Abs(result.TrainingScore-1.0) > 1e-9 {
		t.Errorf("training score = %v, want 1.0", result.TrainingScore)
	}
	if result.ClampEvents != 1 {
		t.Errorf("clamp events = %d, want 1", result.ClampEvents)
	}
	s := result.Ensemble.Stumps[0]
	if s.Feature != 1 || s.Ascending {
		t.Errorf("selected stump = feature %d ascending=%v, want feature 1 descending", s.Feature, s.Ascending)
	}
	if math.IsInf(s.Confidence, 0) || math.IsNaN(s.Confidence) {
		t.Errorf("confidence not finite: %v", s.Confidence)
	}
	if s.Confidence <= 0 {
		t.Errorf("confidence = %v, want positive", s.Confidence)
	}
}

// TestFitReweightsTowardHardQuery follows the loop round by round on the
// opposite corpus. Round one ties across all candidates and must pick
// feature 1 ascending (lowest feature index, ascending before descending).
// That leaves query 1 poorly served, so its weight grows and round two must
// pick the orientation that serves query 1, feature 1 descending.
func TestFitReweightsTowardHardQuery(t *testing.T) {
	var history []RoundStats
	opts := Options{
		MaxRounds: 10,
		OnRound:   func(s RoundStats) { history = append(history, s) },
	}
	result, err := New(oppositeCorpus(), opts).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if len(history) < 2 {
		t.Fatalf("expected at least 2 rounds, got %d", len(history))
	}
	if history[0].Feature != 1 || !history[0].Ascending {
		t.Errorf("round 1 picked feature %d ascending=%v, want feature 1 ascending",
			history[0].Feature, history[0].Ascending)
	}
	if history[1].Feature != 1 || history[1].Ascending {
		t.Errorf("round 2 picked feature %d ascending=%v, want feature 1 descending",
			history[1].Feature, history[1].Ascending)
	}

	// Neither orientation improves the mean metric past round one, so the
	// run stalls and rolls back to the single-stump prefix.
	if result.Status != StatusStalled {
		t.Errorf("status = %s, want %s", result.Status, StatusStalled)
	}
	if result.Rounds != 1 {
		t.Errorf("rounds after rollback = %d, want 1", result.Rounds)
	}
	if math.Abs(result.TrainingScore-2.0/3.0) > 1e-9 {
		t.Errorf("training score = %v, want 2/3", result.TrainingScore)
	}
}

// TestFitRollbackOnMaxRounds verifies the best-prefix rollback also applies
// when the round budget runs out before the patience window closes.
func TestFitRollbackOnMaxRounds(t *testing.T) {
	result, err := New(oppositeCorpus(), Options{MaxRounds: 2, Patience: 5}).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if result.Status != StatusMaxRounds {
		t.Errorf("status = %s, want %s", result.Status, StatusMaxRounds)
	}
	if result.Rounds != 1 {
		t.Errorf("rounds after rollback = %d, want 1", result.Rounds)
	}
}

// TestFitSaturation retires feature 1 after two consecutive selections and
// checks the loop moves on to feature 2.
func TestFitSaturation(t *testing.T) {
	var history []RoundStats
	opts := Options{
		MaxRounds:      10,
		Patience:       10,
		MaxConsecutive: 2,
		OnRound:        func(s RoundStats) { history = append(history, s) },
	}
	_, err := New(oppositeCorpus(), opts).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if len(history) < 3 {
		t.Fatalf("expected at least 3 rounds, got %d", len(history))
	}
	if history[0].Feature != 1 || history[1].Feature != 1 {
		t.Fatalf("rounds 1-2 picked features %d, %d, want feature 1 twice",
			history[0].Feature, history[1].Feature)
	}
	if !history[1].Saturated {
		t.Errorf("round 2 should saturate feature 1")
	}
	if history[2].Feature != 2 {
		t.Errorf("round 3 picked feature %d, want feature 2 after saturation", history[2].Feature)
	}
}

// TestFitSaturationExhaustsPool retires the only candidate feature and
// checks the run ends stalled, not max_rounds, when no selectable ranker is
// left before the round budget runs out.
func TestFitSaturationExhaustsPool(t *testing.T) {
	opts := Options{
		MaxRounds:      10,
		Patience:       10,
		MaxConsecutive: 2,
		Features:       []int{1},
	}
	result, err := New(oppositeCorpus(), opts).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if result.Status != StatusStalled {
		t.Errorf("status = %s, want %s", result.Status, StatusStalled)
	}
	if result.Rounds != 1 {
		t.Errorf("rounds after rollback = %d, want 1", result.Rounds)
	}
}

// TestFitDeterministic refits the same corpus twice and requires identical
// ensembles, stump for stump.
func TestFitDeterministic(t *testing.T) {
	ds := ltr.DataSet{
		rankList(1, []int{2, 1, 0, 0},
			[]float64{0.9, 0.5, 0.4, 0.1},
			[]float64{0.2, 0.8, 0.3, 0.7},
			[]float64{0.1, 0.1, 0.9, 0.2}),
		rankList(2, []int{1, 0, 1},
			[]float64{0.3, 0.6, 0.8},
			[]float64{0.9, 0.1, 0.5},
			[]float64{0.4, 0.4, 0.4}),
		rankList(3, []int{0, 1, 0},
			[]float64{0.5, 0.5, 0.5},
			[]float64{0.2, 0.9, 0.1},
			[]float64{0.7, 0.3, 0.6}),
	}
	opts := Options{MaxRounds: 8, Metric: eval.NDCG{K: 10}, Workers: 4}

	first, err := New(ds, opts).Fit(context.Background())
	if err != nil {
		t.Fatalf("first fit: %v", err)
	}
	second, err := New(ds, opts).Fit(context.Background())
	if err != nil {
		t.Fatalf("second fit: %v", err)
	}

	if first.Rounds != second.Rounds {
		t.Fatalf("rounds differ: %d vs %d", first.Rounds, second.Rounds)
	}
	for i := range first.Ensemble.Stumps {
		a, b := first.Ensemble.Stumps[i], second.Ensemble.Stumps[i]
		if a != b {
			t.Errorf("stump %d differs: %+v vs %+v", i, a, b)
		}
	}
	if first.TrainingScore != second.TrainingScore {
		t.Errorf("training scores differ: %v vs %v", first.TrainingScore, second.TrainingScore)
	}
}

// TestFitRestrictedFeatures limits induction to feature 2 only.
func TestFitRestrictedFeatures(t *testing.T) {
	result, err := New(oppositeCorpus(), Options{Features: []int{2}}).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i, s := range result.Ensemble.Stumps {
		if s.Feature != 2 {
			t.Errorf("stump %d uses feature %d, want only feature 2", i, s.Feature)
		}
	}
}

// TestFitValidationTracking verifies validation, when supplied, drives the
// best-prefix selection and the reported validation score.
func TestFitValidationTracking(t *testing.T) {
	vali := ltr.DataSet{
		rankList(9, []int{1, 0}, []float64{5, 2}, []float64{2, 5}),
	}
	result, err := New(oppositeCorpus(), Options{MaxRounds: 6, Validation: vali}).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.ValidationScore <= 0 {
		t.Errorf("validation score = %v, want positive", result.ValidationScore)
	}
}

func TestFitDegenerateQueriesReported(t *testing.T) {
	ds := ltr.DataSet{
		rankList(1, []int{1, 0}, []float64{2, 1}),
		rankList(2, []int{0, 0}, []float64{1, 2}),
	}
	result, err := New(ds, Options{}).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.DegenerateQueries != 1 {
		t.Errorf("degenerate queries = %d, want 1", result.DegenerateQueries)
	}
}

// TestFitRoundOneSelection fits a single round on a mixed-label corpus and
// checks the selected stump against a brute-force sweep of every
// feature/orientation candidate under uniform weights, then that the
// weight update favors the query the round left worse off.
func TestFitRoundOneSelection(t *testing.T) {
	ds := ltr.DataSet{
		rankList(1, []int{2, 0, 1}, []float64{3, 1, 2}, []float64{1, 2, 3}),
		rankList(2, []int{1, 0, 0}, []float64{1, 3, 2}, []float64{2, 1, 0.5}),
	}
	result, err := New(ds, Options{MaxRounds: 1}).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	picked := result.Ensemble.Stumps[0].WeakRanker

	bestScore := -1.0
	var bestRanker WeakRanker
	for feature := 1; feature <= 2; feature++ {
		for _, ascending := range []bool{true, false} {
			w := WeakRanker{Feature: feature, Ascending: ascending}
			score := 0.0
			for _, rl := range ds {
				score += 0.5 * eval.MAP{}.Evaluate(w.Rank(rl).Labels())
			}
			if score > bestScore {
				bestScore = score
				bestRanker = w
			}
		}
	}
	if picked != bestRanker {
		t.Errorf("round 1 picked %+v, brute force says %+v (weighted MAP %v)",
			picked, bestRanker, bestScore)
	}

	// Reweight with the selected stump: the query with the lower per-query
	// metric must end up heavier.
	a := New(ds, Options{})
	state := &trainState{
		weights:  uniformWeights(ds.QueryCount()),
		ensemble: result.Ensemble,
	}
	a.reweight(state)

	m1 := eval.MAP{}.Evaluate(result.Ensemble.Rank(ds[0]).Labels())
	m2 := eval.MAP{}.Evaluate(result.Ensemble.Rank(ds[1]).Labels())
	if m1 == m2 {
		t.Fatalf("per-query metrics tie (%v), corpus does not exercise the shift", m1)
	}
	worse, better := 0, 1
	if m2 < m1 {
		worse, better = 1, 0
	}
	if state.weights[worse] <= state.weights[better] {
		t.Errorf("weights = %v, want query %d (metric %v) heavier than query %d (metric %v)",
			state.weights, worse+1, math.Min(m1, m2), better+1, math.Max(m1, m2))
	}
}

// TestPredictPrefixLinearity verifies a k+1-stump score differs from the
// k-stump score by exactly the last stump's contribution.
func TestPredictPrefixLinearity(t *testing.T) {
	result, err := New(oppositeCorpus(), Options{MaxRounds: 4, Patience: 10}).Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	full := result.Ensemble
	dp := ltr.DataPoint{Features: []float64{0.7, 0.2}}

	for k := 0; k < full.Len(); k++ {
		s := full.Stumps[k]
		want := full.Prefix(k).Score(dp) + s.Confidence*s.WeakRanker.Score(dp)
		got := full.Prefix(k + 1).Score(dp)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("prefix %d score = %v, want %v", k+1, got, want)
		}
	}
}

// TestReweight checks the invariants of the weight update directly: the
// distribution stays normalized and worse-served queries end up heavier.
func TestReweight(t *testing.T) {
	ds := oppositeCorpus()
	a := New(ds, Options{})
	state := &trainState{
		weights: uniformWeights(ds.QueryCount()),
		ensemble: &Ensemble{Stumps: []Stump{
			{WeakRanker: WeakRanker{Feature: 1}, Confidence: 1.0},
		}},
	}

	mean := a.reweight(state)
	// Feature 1 descending: query 1 scores 1, query 2 scores 1/3.
	if math.Abs(mean-2.0/3.0) > 1e-9 {
		t.Errorf("mean metric = %v, want 2/3", mean)
	}

	sum := 0.0
	for _, w := range state.weights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("weights sum to %v, want 1", sum)
	}
	if state.weights[1] <= state.weights[0] {
		t.Errorf("weights = %v, want query 2 heavier than query 1", state.weights)
	}
}

func TestConfidence(t *testing.T) {
	// A weighted score of 0.5 means chance performance, zero confidence.
	if v, clamped := confidence(0.5); v != 0 || clamped {
		t.Errorf("confidence(0.5) = %v clamped=%v, want 0 unclamped", v, clamped)
	}

	// Monotonic in the weighted score, antisymmetric around 0.5.
	lo, _ := confidence(0.6)
	hi, _ := confidence(0.9)
	if !(0 < lo && lo < hi) {
		t.Errorf("confidence not increasing: c(0.6)=%v c(0.9)=%v", lo, hi)
	}
	neg, _ := confidence(0.4)
	if math.Abs(neg+lo) > 1e-12 {
		t.Errorf("confidence(0.4) = %v, want -confidence(0.6) = %v", neg, -lo)
	}

	// Extremes clamp instead of overflowing.
	for _, w := range []float64{0.0, 1.0} {
		v, clamped := confidence(w)
		if !clamped {
			t.Errorf("confidence(%v) not clamped", w)
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("confidence(%v) = %v, want finite", w, v)
		}
	}
}
