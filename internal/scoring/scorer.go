package scoring

import (
	"context"
	"fmt"
	"time"

	"prizeboard/internal/competition"

	"github.com/paulmach/orb"
)

// SegmentQuery selects the segments of one user that count toward a metric
type SegmentQuery struct {
	UserID string
	Metric competition.Metric
	// Segments must start at or after From and end at or before To
	From time.Time
	To   time.Time
	// Region restricts to segments intersecting it; nil disables the filter
	Region orb.MultiPolygon
}

// SegmentStore reads materialized per-segment metrics
type SegmentStore interface {
	// SumSaved returns the sum of q.Metric over the matching segments, or 0
	// when none match
	SumSaved(ctx context.Context, q SegmentQuery) (float64, error)
}

// ProfileStore resolves user profiles
type ProfileStore interface {
	// AgeGroup fails with *competition.UserNotFoundError for unknown users
	AgeGroup(ctx context.Context, userID string) (competition.AgeGroup, error)
}

// Scorer computes per-criterion contributions of a user
type Scorer struct {
	segments SegmentStore
	profiles ProfileStore
}

// NewScorer creates a new criterion scorer
func NewScorer(segments SegmentStore, profiles ProfileStore) *Scorer {
	return &Scorer{
		segments: segments,
		profiles: profiles,
	}
}

// Score returns the contribution of userID to one criterion
func (s *Scorer) Score(ctx context.Context, info competition.CompetitionInfo, userID string, criterion competition.Criterion) (float64, error) {
	if _, ok := criterion.SavedMetric(); !ok {
		return 0, &competition.UnsupportedCriterionError{Criterion: criterion}
	}
	qualifies, err := s.qualifies(ctx, info, userID)
	if err != nil {
		return 0, err
	}
	if !qualifies {
		return 0, nil
	}
	return s.sum(ctx, info, userID, criterion)
}

// ScoreUser computes every configured criterion for userID and aggregates
// them. The profile is resolved once.
func (s *Scorer) ScoreUser(ctx context.Context, info competition.CompetitionInfo, userID string) (competition.ScoreEntry, error) {
	for _, c := range info.Criteria {
		if !c.Supported() {
			return competition.ScoreEntry{}, &competition.UnsupportedCriterionError{Criterion: c}
		}
	}

	qualifies, err := s.qualifies(ctx, info, userID)
	if err != nil {
		return competition.ScoreEntry{}, err
	}

	points := make(map[competition.Criterion]float64, len(info.Criteria))
	for _, c := range info.Criteria {
		if !qualifies {
			points[c] = 0
			continue
		}
		v, err := s.sum(ctx, info, userID, c)
		if err != nil {
			return competition.ScoreEntry{}, err
		}
		points[c] = v
	}
	return competition.NewScoreEntry(userID, points), nil
}

// qualifies checks the user's age group against the competition
func (s *Scorer) qualifies(ctx context.Context, info competition.CompetitionInfo, userID string) (bool, error) {
	group, err := s.profiles.AgeGroup(ctx, userID)
	if err != nil {
		return false, err
	}
	return info.AcceptsAgeGroup(group), nil
}

func (s *Scorer) sum(ctx context.Context, info competition.CompetitionInfo, userID string, criterion competition.Criterion) (float64, error) {
	metric, _ := criterion.SavedMetric()
	q := SegmentQuery{
		UserID: userID,
		Metric: metric,
		From:   info.StartDate,
		To:     info.EndDate,
	}
	if info.HasRegion() {
		q.Region = info.Region
	}
	v, err := s.segments.SumSaved(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("sum %s for user %s: %w", metric, userID, err)
	}
	return v, nil
}
