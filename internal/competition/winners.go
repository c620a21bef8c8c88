package competition

// PrizeRule binds a prize to a competition. A nil UserRank applies the prize
// to every winner within the threshold, otherwise only to that exact rank.
type PrizeRule struct {
	ID          string        `json:"id"`
	PrizeID     string        `json:"prize_id"`
	PrizeName   string        `json:"prize_name"`
	UserRank    *int          `json:"user_rank,omitempty"`
	Attribution PrizeTemplate `json:"attribution_template,omitempty"`
}

// Placement is a leaderboard position that qualifies as a winner
type Placement struct {
	UserID string  `json:"user_id"`
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
}

// Winner is a persisted placement. There is exactly one per participant and
// competition, and its rank never changes after the first assignment.
type Winner struct {
	CompetitionID string `json:"competition_id"`
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
	Rank          int    `json:"rank"`
}

// AwardedPrize is a prize attributed to a winner
type AwardedPrize struct {
	PrizeID   string `json:"prize_id"`
	PrizeName string `json:"prize_name"`
	Message   string `json:"message,omitempty"`
}

// Award is a winner together with every prize it earned
type Award struct {
	Winner
	Score  float64        `json:"score"`
	Prizes []AwardedPrize `json:"prizes"`
}

// SelectWinners returns the first threshold entries of a leaderboard. Fewer
// entries than the threshold simply yields fewer winners.
func SelectWinners(lb Leaderboard, threshold int) []Placement {
	n := min(max(threshold, 0), len(lb.Entries))
	placements := make([]Placement, 0, n)
	for i := 0; i < n; i++ {
		placements = append(placements, Placement{
			UserID: lb.Entries[i].UserID,
			Rank:   i + 1,
			Score:  lb.Entries[i].Total,
		})
	}
	return placements
}

// PrizesForRank resolves the rules that apply to a winner at rank. Ranks
// beyond the threshold never receive a prize, even from a rank-specific rule.
func PrizesForRank(rank, threshold int, rules []PrizeRule) []PrizeRule {
	if rank < 1 || rank > threshold {
		return nil
	}
	var applicable []PrizeRule
	for _, r := range rules {
		if r.UserRank == nil || *r.UserRank == rank {
			applicable = append(applicable, r)
		}
	}
	return applicable
}

// Attribute builds the award of a persisted winner
func Attribute(w Winner, score float64, threshold int, rules []PrizeRule) Award {
	award := Award{Winner: w, Score: score, Prizes: []AwardedPrize{}}
	for _, r := range PrizesForRank(w.Rank, threshold, rules) {
		award.Prizes = append(award.Prizes, AwardedPrize{
			PrizeID:   r.PrizeID,
			PrizeName: r.PrizeName,
			Message:   r.Attribution.Render(score, w.Rank),
		})
	}
	return award
}

// AssignWinners maps a frozen leaderboard and a set of prize rules onto
// awards. Participant ids are left empty; the caller resolves them when
// persisting.
func AssignWinners(lb Leaderboard, threshold int, rules []PrizeRule) []Award {
	placements := SelectWinners(lb, threshold)
	awards := make([]Award, 0, len(placements))
	for _, p := range placements {
		w := Winner{CompetitionID: lb.CompetitionID, UserID: p.UserID, Rank: p.Rank}
		awards = append(awards, Attribute(w, p.Score, threshold, rules))
	}
	return awards
}
