package model

// LeaderboardEntry is one row of a ranked leaderboard view.
//
// Entirely derived — it has no lifecycle of its own and is recomputed from
// the cached score projections on every request.
//
// RANKING POLICY (standard competition ranking):
// Ranks are 1-based and ties share a rank. The next distinct score gets a
// rank equal to the number of positions consumed so far plus one, so scores
// [100, 100, 80] rank as [1, 1, 3] — not the "dense" [1, 1, 2].
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Rank        int    `json:"rank"`
	TotalPoints int64  `json:"totalPoints"`
	Partial     bool   `json:"partial,omitempty"` // provisional: last aggregation missed a source
}
