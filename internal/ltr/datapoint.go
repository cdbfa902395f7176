// Package ltr holds the in-memory data model for learning-to-rank:
// labeled query-document feature vectors (DataPoint), per-query document
// lists (RankList), and the full training corpus (DataSet).
package ltr

import "fmt"

// DataPoint is a single labeled document-query instance. Features are dense
// and indexed from 1, following the SVMLight convention; indices a document
// does not carry are implicitly 0.0.
type DataPoint struct {
	Label       int       `json:"label"`
	QueryID     int64     `json:"query_id"`
	Features    []float64 `json:"features"`
	Description string    `json:"description,omitempty"`
}

// Feature returns the value of the feature at the given 1-based index, or
// 0.0 when the document does not carry it.
func (dp DataPoint) Feature(index int) float64 {
	if index < 1 || index > len(dp.Features) {
		return 0.0
	}
	return dp.Features[index-1]
}

// FeatureCount returns the highest feature index the document carries.
func (dp DataPoint) FeatureCount() int {
	return len(dp.Features)
}

// Relevant reports whether the document is relevant (label > 0).
func (dp DataPoint) Relevant() bool {
	return dp.Label > 0
}

func (dp DataPoint) String() string {
	return fmt.Sprintf("qid=%d label=%d features=%d desc=%q",
		dp.QueryID, dp.Label, len(dp.Features), dp.Description)
}
