// Command adarank trains, evaluates, and applies ranking models from the
// command line, without any of the service infrastructure. Datasets are
// SVMLight files; models are JSON ensembles compatible with the trainer
// service output.
//
// Usage:
//
//	adarank train -data train.txt [-validation vali.txt] [-metric ndcg@10] -output model.json
//	adarank eval  -model model.json -data test.txt [-metric map]
//	adarank rank  -model model.json -data test.txt [-output ranked.txt]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/internal/ltr/boosting"
	"github.com/marcosfpr/adarank/internal/ltr/eval"
	"github.com/marcosfpr/adarank/internal/ltr/svmlight"
	"github.com/marcosfpr/adarank/pkg/errors"
	"github.com/marcosfpr/adarank/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "train":
		err = runTrain(os.Args[2:])
	case "eval":
		err = runEval(os.Args[2:])
	case "rank":
		err = runRank(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: adarank <command> [flags]

commands:
  train  fit an ensemble on a training dataset
  eval   score a saved model against a dataset
  rank   rerank a dataset with a saved model

run "adarank <command> -h" for per-command flags`)
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	dataPath := fs.String("data", "", "training dataset in SVMLight format (required)")
	valiPath := fs.String("validation", "", "optional validation dataset")
	output := fs.String("output", "model.json", "path to write the trained model")
	metric := fs.String("metric", "map", "optimization metric: map, ndcg@k, p@k")
	rounds := fs.Int("rounds", 50, "maximum boosting rounds")
	patience := fs.Int("patience", 3, "non-improving rounds tolerated before stalling")
	tolerance := fs.Float64("tolerance", 0.003, "convergence epsilon against the metric maximum")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Parse(args)
	if *dataPath == "" {
		fs.Usage()
		return fmt.Errorf("-data is required")
	}
	logger.Setup(*logLevel, "text")

	ev, err := eval.New(*metric)
	if err != nil {
		return err
	}
	dataset, err := svmlight.Load(*dataPath)
	if err != nil {
		return err
	}
	var validation ltr.DataSet
	if *valiPath != "" {
		validation, err = svmlight.Load(*valiPath)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := boosting.Options{
		Metric:     ev,
		MaxRounds:  *rounds,
		Patience:   *patience,
		Tolerance:  *tolerance,
		Validation: validation,
		OnRound: func(s boosting.RoundStats) {
			line := fmt.Sprintf("round %3d  feature %4d", s.Round, s.Feature)
			if s.Ascending {
				line += " (asc)"
			}
			line += fmt.Sprintf("  %s=%.4f", ev.Name(), s.TrainingScore)
			if validation != nil {
				line += fmt.Sprintf("  vali=%.4f", s.ValidationScore)
			}
			fmt.Println(line)
		},
	}
	result, err := boosting.New(dataset, opts).Fit(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("finished: %s after %d rounds, %s=%.4f", result.Status, result.Rounds, ev.Name(), result.TrainingScore)
	if validation != nil {
		fmt.Printf(" (vali=%.4f)", result.ValidationScore)
	}
	fmt.Println()
	if result.DegenerateQueries > 0 {
		fmt.Printf("note: %d queries without relevant documents\n", result.DegenerateQueries)
	}

	data, err := json.MarshalIndent(result.Ensemble, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(*output, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	fmt.Printf("model written to %s (%d rankers)\n", *output, result.Ensemble.Len())
	return nil
}

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	modelPath := fs.String("model", "", "trained model file (required)")
	dataPath := fs.String("data", "", "dataset in SVMLight format (required)")
	metric := fs.String("metric", "map", "evaluation metric: map, ndcg@k, p@k")
	fs.Parse(args)
	if *modelPath == "" || *dataPath == "" {
		fs.Usage()
		return fmt.Errorf("-model and -data are required")
	}

	ev, err := eval.New(*metric)
	if err != nil {
		return err
	}
	model, err := loadModel(*modelPath)
	if err != nil {
		return err
	}
	dataset, err := svmlight.Load(*dataPath)
	if err != nil {
		return err
	}
	if dataset.QueryCount() == 0 {
		return errors.ErrEmptyDataSet
	}

	var total float64
	for _, rl := range dataset {
		ranked := model.Rank(rl)
		score := eval.EvaluateRankList(ev, ranked)
		fmt.Printf("qid %-8d %s=%.4f\n", rl.QueryID, ev.Name(), score)
		total += score
	}
	fmt.Printf("mean %s over %d queries: %.4f\n", ev.Name(), dataset.QueryCount(), total/float64(dataset.QueryCount()))
	return nil
}

func runRank(args []string) error {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	modelPath := fs.String("model", "", "trained model file (required)")
	dataPath := fs.String("data", "", "dataset in SVMLight format (required)")
	output := fs.String("output", "", "write ranked output here instead of stdout")
	fs.Parse(args)
	if *modelPath == "" || *dataPath == "" {
		fs.Usage()
		return fmt.Errorf("-model and -data are required")
	}

	model, err := loadModel(*modelPath)
	if err != nil {
		return err
	}
	dataset, err := svmlight.Load(*dataPath)
	if err != nil {
		return err
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	for _, rl := range dataset {
		scores := make([]float64, rl.Len())
		for i, dp := range rl.Points {
			scores[i] = model.Score(dp)
		}
		perm := make([]int, rl.Len())
		for i := range perm {
			perm[i] = i
		}
		sort.SliceStable(perm, func(a, b int) bool { return scores[perm[a]] > scores[perm[b]] })
		for rank, idx := range perm {
			dp := rl.Points[idx]
			fmt.Fprintf(out, "%d\tqid:%d\trank:%d\tscore:%.6f\t%s\n",
				dp.Label, rl.QueryID, rank+1, scores[idx], dp.Description)
		}
	}
	return nil
}

func loadModel(path string) (*boosting.Ensemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e boosting.Ensemble
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
