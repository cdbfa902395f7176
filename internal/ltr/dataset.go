package ltr

// DataSet is the full training corpus: one RankList per query, in load
// order. It is built once by a loader and treated as read-only afterwards,
// so it may be shared freely across goroutines during training.
type DataSet []*RankList

// QueryCount returns the number of queries in the corpus.
func (ds DataSet) QueryCount() int {
	return len(ds)
}

// DocumentCount returns the total number of documents across all queries.
func (ds DataSet) DocumentCount() int {
	n := 0
	for _, rl := range ds {
		n += rl.Len()
	}
	return n
}

// FeatureCount returns the highest feature index present anywhere in the
// corpus. A return of 0 means no document carries any feature.
func (ds DataSet) FeatureCount() int {
	max := 0
	for _, rl := range ds {
		for _, dp := range rl.Points {
			if dp.FeatureCount() > max {
				max = dp.FeatureCount()
			}
		}
	}
	return max
}

// DegenerateQueryCount returns the number of queries without a single
// relevant document. Such queries contribute 0 to every metric but are
// legal input.
func (ds DataSet) DegenerateQueryCount() int {
	n := 0
	for _, rl := range ds {
		if rl.RelevantCount() == 0 {
			n++
		}
	}
	return n
}
