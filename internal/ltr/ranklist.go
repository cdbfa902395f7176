package ltr

// RankList is the ordered list of documents for one query. The slice order
// is the canonical document order: every sort in the system breaks ties by
// position in this slice, so reordering a RankList in place would change
// metric values. Rankers always return a new RankList.
type RankList struct {
	QueryID int64       `json:"query_id"`
	Points  []DataPoint `json:"points"`
}

// NewRankList builds a RankList from the given points. The query id is taken
// from the first point; callers guarantee all points share it.
func NewRankList(points []DataPoint) *RankList {
	rl := &RankList{Points: points}
	if len(points) > 0 {
		rl.QueryID = points[0].QueryID
	}
	return rl
}

// Len returns the number of documents in the list.
func (rl *RankList) Len() int {
	return len(rl.Points)
}

// Labels returns the relevance labels in list order.
func (rl *RankList) Labels() []int {
	labels := make([]int, len(rl.Points))
	for i, dp := range rl.Points {
		labels[i] = dp.Label
	}
	return labels
}

// RelevantCount returns the number of documents with label > 0.
func (rl *RankList) RelevantCount() int {
	n := 0
	for _, dp := range rl.Points {
		if dp.Relevant() {
			n++
		}
	}
	return n
}

// Permute returns a new RankList whose points follow the given permutation
// of indices into the receiver.
func (rl *RankList) Permute(perm []int) *RankList {
	points := make([]DataPoint, 0, len(perm))
	for _, i := range perm {
		points = append(points, rl.Points[i])
	}
	return &RankList{QueryID: rl.QueryID, Points: points}
}
