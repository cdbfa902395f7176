package eval

// MAP computes a single query's average precision: the mean, over positions
// holding a relevant document, of precision at that position. Averaging
// across queries is the caller's job (EvaluateDataSet), which makes the
// aggregate the usual Mean Average Precision.
type MAP struct{}

func (MAP) Name() string { return "MAP" }

func (MAP) Evaluate(labels []int) float64 {
	sum := 0.0
	relevant := 0
	for i, label := range labels {
		if label > 0 {
			relevant++
			sum += float64(relevant) / float64(i+1)
		}
	}
	if relevant == 0 {
		return 0.0
	}
	return sum / float64(relevant)
}
