package competition

import (
	"cmp"
	"maps"
	"slices"
	"time"
)

// ScoreEntry is one participant's result in a competition
type ScoreEntry struct {
	UserID         string                `json:"user"`
	Total          float64               `json:"total_score"`
	CriteriaPoints map[Criterion]float64 `json:"criteria_points"`
}

// Leaderboard is an ordered set of score entries. Frozen leaderboards are
// closing snapshots and never change once written.
type Leaderboard struct {
	CompetitionID string       `json:"competition_id"`
	Frozen        bool         `json:"frozen"`
	FrozenAt      *time.Time   `json:"frozen_at,omitempty"`
	Entries       []ScoreEntry `json:"entries"`
}

// Aggregate combines per-criterion points into a composite score using the
// unweighted sum. Criteria are summed in sorted order so the result does not
// depend on map iteration order.
func Aggregate(points map[Criterion]float64) float64 {
	total := 0.0
	for _, c := range slices.Sorted(maps.Keys(points)) {
		total += points[c]
	}
	return total
}

// NewScoreEntry builds an entry and derives its total from points
func NewScoreEntry(userID string, points map[Criterion]float64) ScoreEntry {
	return ScoreEntry{
		UserID:         userID,
		Total:          Aggregate(points),
		CriteriaPoints: points,
	}
}

// compareEntries orders by total descending, then user id ascending
func compareEntries(a, b ScoreEntry) int {
	if c := cmp.Compare(b.Total, a.Total); c != 0 {
		return c
	}
	return cmp.Compare(a.UserID, b.UserID)
}

// SortEntries sorts entries in leaderboard order in place
func SortEntries(entries []ScoreEntry) {
	slices.SortStableFunc(entries, compareEntries)
}

// Rank returns the 1-based position of userID, or 0 when absent
func (l Leaderboard) Rank(userID string) int {
	for i, e := range l.Entries {
		if e.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// Entry returns the entry of userID
func (l Leaderboard) Entry(userID string) (ScoreEntry, bool) {
	if rank := l.Rank(userID); rank > 0 {
		return l.Entries[rank-1], true
	}
	return ScoreEntry{}, false
}
