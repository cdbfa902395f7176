package boosting

import (
	"context"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/internal/ltr/eval"
	"github.com/marcosfpr/adarank/pkg/errors"
)

// Status reports how a training run ended.
type Status string

const (
	// StatusConverged means the aggregate metric reached its maximum within
	// tolerance.
	StatusConverged Status = "converged"
	// StatusMaxRounds means the configured round budget was exhausted.
	StatusMaxRounds Status = "max_rounds"
	// StatusStalled means the metric stopped improving for the configured
	// patience window; the ensemble was rolled back to its best prefix.
	StatusStalled Status = "stalled"
	// StatusCancelled means the context was cancelled between rounds.
	StatusCancelled Status = "cancelled"
)

// clampEpsilon bounds the weighted performance score away from ±1 so the
// confidence formula stays finite.
const clampEpsilon = 1e-7

// Options configures a training run. Zero values fall back to the defaults
// below.
type Options struct {
	// Metric scores per-query rankings. Defaults to MAP.
	Metric eval.Evaluator
	// MaxRounds caps the number of boosting rounds. Default 50.
	MaxRounds int
	// Patience is the number of consecutive non-improving rounds tolerated
	// before training stalls. Default 3.
	Patience int
	// Tolerance is the epsilon used for the convergence check against the
	// metric's maximum of 1.0. Default 0.003.
	Tolerance float64
	// MaxConsecutive retires a feature after it has been selected this many
	// rounds in a row. Default 5.
	MaxConsecutive int
	// Workers bounds the parallel per-feature evaluation during induction.
	// Default GOMAXPROCS.
	Workers int
	// Features restricts induction to the given 1-based feature indices.
	// Empty means every feature present in the corpus.
	Features []int
	// Validation, when set, is scored every round and drives best-prefix
	// tracking instead of the training score.
	Validation ltr.DataSet
	// OnRound, when set, is invoked after every completed round.
	OnRound func(RoundStats)
}

// RoundStats describes one completed boosting round.
type RoundStats struct {
	Round           int     `json:"round"`
	Feature         int     `json:"feature"`
	Ascending       bool    `json:"ascending"`
	Confidence      float64 `json:"confidence"`
	TrainingScore   float64 `json:"training_score"`
	Improvement     float64 `json:"improvement"`
	ValidationScore float64 `json:"validation_score,omitempty"`
	Saturated       bool    `json:"saturated,omitempty"`
}

// FitResult is the outcome of a training run. Non-fatal conditions that
// occurred during the loop (degenerate queries, confidence clamping, a
// stall) are reported here rather than as errors.
type FitResult struct {
	Ensemble          *Ensemble `json:"ensemble"`
	Status            Status    `json:"status"`
	Rounds            int       `json:"rounds"`
	TrainingScore     float64   `json:"training_score"`
	ValidationScore   float64   `json:"validation_score"`
	DegenerateQueries int       `json:"degenerate_queries"`
	ClampEvents       int       `json:"clamp_events"`
}

// AdaRank trains a boosted ensemble of single-feature weak rankers by
// reweighting training queries round over round, concentrating on the
// queries the current ensemble serves worst.
type AdaRank struct {
	dataset ltr.DataSet
	opts    Options
	logger  *slog.Logger
}

// New creates an engine for the given corpus. The corpus is treated as
// read-only for the lifetime of the engine.
func New(dataset ltr.DataSet, opts Options) *AdaRank {
	if opts.Metric == nil {
		opts.Metric = eval.MAP{}
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 50
	}
	if opts.Patience <= 0 {
		opts.Patience = 3
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 0.003
	}
	if opts.MaxConsecutive <= 0 {
		opts.MaxConsecutive = 5
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &AdaRank{
		dataset: dataset,
		opts:    opts,
		logger:  slog.Default().With("component", "adarank"),
	}
}

// candidate identifies one feature/orientation pair under evaluation.
// Candidates are enumerated by lowest feature index first, ascending
// orientation before descending, which is also the deterministic tie-break
// order.
type candidate struct {
	pos       int
	feature   int
	ascending bool
}

// Fit runs the boosting loop. Fatal conditions (empty corpus, no features)
// surface before any round executes. ctx is polled between rounds only.
func (a *AdaRank) Fit(ctx context.Context) (*FitResult, error) {
	if a.dataset.QueryCount() == 0 {
		return nil, errors.ErrEmptyDataSet
	}
	features := a.opts.Features
	if len(features) == 0 {
		n := a.dataset.FeatureCount()
		for f := 1; f <= n; f++ {
			features = append(features, f)
		}
	}
	if len(features) == 0 {
		return nil, errors.ErrNoFeatures
	}

	degenerate := a.dataset.DegenerateQueryCount()
	if degenerate > 0 {
		a.logger.Warn("corpus contains queries with no relevant documents",
			"degenerate_queries", degenerate,
			"total_queries", a.dataset.QueryCount(),
		)
	}

	a.logger.Info("training started",
		"metric", a.opts.Metric.Name(),
		"queries", a.dataset.QueryCount(),
		"documents", a.dataset.DocumentCount(),
		"features", len(features),
		"max_rounds", a.opts.MaxRounds,
	)

	cache := newOrderingCache(a.dataset, features)
	candidates := make([]candidate, 0, 2*len(features))
	for pos, f := range features {
		candidates = append(candidates, candidate{pos: pos, feature: f, ascending: true})
		candidates = append(candidates, candidate{pos: pos, feature: f})
	}

	state := &trainState{
		weights:     uniformWeights(a.dataset.QueryCount()),
		ensemble:    &Ensemble{},
		saturated:   make(map[int]bool),
		prevFeature: -1,
		bestScore:   -1,
	}

	status := StatusMaxRounds
	for round := 1; round <= a.opts.MaxRounds; round++ {
		if ctx.Err() != nil {
			a.logger.Warn("training cancelled", "round", round)
			status = StatusCancelled
			break
		}

		best, weighted, ok := a.induce(candidates, cache, state)
		if !ok {
			// Every feature saturated before the round budget ran out. The
			// metric cannot improve further, so the run ends stalled.
			a.logger.Warn("no selectable weak ranker left", "round", round)
			status = StatusStalled
			break
		}

		confidence, clamped := confidence(weighted)
		if clamped {
			state.clampEvents++
			a.logger.Warn("confidence clamped at numeric boundary",
				"round", round,
				"feature", best.feature,
				"weighted_score", weighted,
			)
		}
		state.ensemble.Stumps = append(state.ensemble.Stumps, Stump{
			WeakRanker: WeakRanker{Feature: best.feature, Ascending: best.ascending},
			Confidence: confidence,
		})

		trainingScore := a.reweight(state)
		validationScore := 0.0
		if len(a.opts.Validation) > 0 {
			validationScore, _ = a.scoreDataSet(state.ensemble, a.opts.Validation)
		}

		tracking := trainingScore
		if len(a.opts.Validation) > 0 {
			tracking = validationScore
		}
		improvement := tracking - state.bestScore
		if tracking > state.bestScore {
			state.bestScore = tracking
			state.bestRound = round
			state.stall = 0
		} else {
			state.stall++
		}

		saturated := a.saturate(state, best.feature)

		stats := RoundStats{
			Round:           round,
			Feature:         best.feature,
			Ascending:       best.ascending,
			Confidence:      confidence,
			TrainingScore:   trainingScore,
			Improvement:     improvement,
			ValidationScore: validationScore,
			Saturated:       saturated,
		}
		a.logger.Debug("round completed",
			"round", round,
			"feature", best.feature,
			"ascending", best.ascending,
			"confidence", confidence,
			"training_score", trainingScore,
			"validation_score", validationScore,
			"improvement", improvement,
		)
		if a.opts.OnRound != nil {
			a.opts.OnRound(stats)
		}

		if trainingScore >= 1.0-a.opts.Tolerance {
			status = StatusConverged
			break
		}
		if state.stall >= a.opts.Patience {
			status = StatusStalled
			break
		}
	}

	if state.ensemble.Len() == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.ErrNoRankers
	}

	// Roll back to the best-scoring prefix. Trailing rounds that did not
	// improve the tracked metric are discarded.
	final := state.ensemble.Prefix(state.bestRound)

	result := &FitResult{
		Ensemble:          final,
		Status:            status,
		Rounds:            final.Len(),
		DegenerateQueries: degenerate,
		ClampEvents:       state.clampEvents,
	}
	result.TrainingScore, _ = a.scoreDataSet(final, a.dataset)
	if len(a.opts.Validation) > 0 {
		result.ValidationScore, _ = a.scoreDataSet(final, a.opts.Validation)
	}

	a.logger.Info("training finished",
		"status", status,
		"rounds", result.Rounds,
		"training_score", result.TrainingScore,
		"validation_score", result.ValidationScore,
		"clamp_events", result.ClampEvents,
	)
	return result, nil
}

// trainState is the mutable per-run state, owned exclusively by the loop.
type trainState struct {
	weights     []float64
	ensemble    *Ensemble
	saturated   map[int]bool
	prevFeature int
	consecutive int
	bestScore   float64
	bestRound   int
	stall       int
	clampEvents int
}

// induce evaluates every non-saturated candidate against the current query
// weights and returns the winner. Evaluation is parallel across bounded
// workers; each worker reads only the immutable ordering cache and writes a
// disjoint slot. The reduction is sequential in candidate order, so ties
// resolve to the lowest feature index, ascending orientation first.
// A feature may win again in a later round with a different confidence;
// AdaRank permits repeated selection.
func (a *AdaRank) induce(candidates []candidate, cache *orderingCache, state *trainState) (candidate, float64, bool) {
	scores := make([]float64, len(candidates))
	eligible := make([]bool, len(candidates))

	chunk := (len(candidates) + a.opts.Workers - 1) / a.opts.Workers
	var g errgroup.Group
	for start := 0; start < len(candidates); start += chunk {
		end := start + chunk
		if end > len(candidates) {
			end = len(candidates)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				c := candidates[i]
				if state.saturated[c.feature] {
					continue
				}
				eligible[i] = true
				scores[i] = a.weightedScore(cache, c, state.weights)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return an error

	bestIdx := -1
	bestScore := -1.0
	for i := range candidates {
		if eligible[i] && scores[i] > bestScore {
			bestIdx = i
			bestScore = scores[i]
		}
	}
	if bestIdx < 0 {
		return candidate{}, 0, false
	}
	return candidates[bestIdx], bestScore, true
}

// weightedScore sums each query's metric under the candidate's cached
// ordering, weighted by the current query distribution.
func (a *AdaRank) weightedScore(cache *orderingCache, c candidate, weights []float64) float64 {
	score := 0.0
	for q := range a.dataset {
		score += weights[q] * a.opts.Metric.Evaluate(cache.queryLabels(c.pos, c.ascending, q))
	}
	return score
}

// reweight recomputes the ensemble's per-query metric, shifts the weight
// distribution toward poorly-served queries with w_q ∝ exp(-metric_q), and
// returns the unweighted mean metric over all queries.
func (a *AdaRank) reweight(state *trainState) float64 {
	total := 0.0
	mean := 0.0
	for q, rl := range a.dataset {
		m := eval.EvaluateRankList(a.opts.Metric, state.ensemble.Rank(rl))
		mean += m
		state.weights[q] = math.Exp(-m)
		total += state.weights[q]
	}
	for q := range state.weights {
		state.weights[q] /= total
	}
	return mean / float64(len(a.dataset))
}

// saturate retires a feature selected MaxConsecutive rounds in a row.
func (a *AdaRank) saturate(state *trainState, feature int) bool {
	if feature == state.prevFeature {
		state.consecutive++
	} else {
		state.consecutive = 1
	}
	state.prevFeature = feature
	if state.consecutive >= a.opts.MaxConsecutive {
		state.saturated[feature] = true
		state.consecutive = 0
		a.logger.Debug("feature saturated", "feature", feature)
		return true
	}
	return false
}

// scoreDataSet is the plain (unweighted) aggregate metric of the ensemble's
// ranking over a corpus.
func (a *AdaRank) scoreDataSet(e *Ensemble, ds ltr.DataSet) (float64, error) {
	if ds.QueryCount() == 0 {
		return 0, errors.ErrEmptyDataSet
	}
	total := 0.0
	for _, rl := range ds {
		total += eval.EvaluateRankList(a.opts.Metric, e.Rank(rl))
	}
	return total / float64(ds.QueryCount()), nil
}

// confidence maps a weighted metric score in [0,1] to the analytic AdaRank
// stump weight 0.5*ln((1+perf)/(1-perf)) with perf = 2*score-1. The score
// is clamped so that a perfect or zero weighted metric yields a large
// finite confidence rather than ±Inf.
func confidence(weighted float64) (value float64, clamped bool) {
	perf := 2*weighted - 1
	switch {
	case perf >= 1-clampEpsilon:
		perf = 1 - clampEpsilon
		clamped = true
	case perf <= -1+clampEpsilon:
		perf = -1 + clampEpsilon
		clamped = true
	}
	return 0.5 * math.Log((1+perf)/(1-perf)), clamped
}

func uniformWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	return weights
}
