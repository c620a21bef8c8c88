package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"prizeboard/internal/competition"
	"prizeboard/internal/models"
	"prizeboard/internal/repository"
	"prizeboard/internal/scoring"
	"prizeboard/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// countingSegments records how many sums the scorer asked for
type countingSegments struct {
	inner scoring.SegmentStore
	calls atomic.Int64
}

func (c *countingSegments) SumSaved(ctx context.Context, q scoring.SegmentQuery) (float64, error) {
	c.calls.Add(1)
	return c.inner.SumSaved(ctx, q)
}

type testEnv struct {
	svc      *CompetitionService
	store    *repository.MemoryStore
	segments *countingSegments
	clock    *clockwork.FakeClock
}

type envOption func(*envConfig)

type envConfig struct {
	cache SnapshotCache
	pool  scoring.Pool
}

func withCache(cache SnapshotCache) envOption {
	return func(c *envConfig) { c.cache = cache }
}

func withPool(pool scoring.Pool) envOption {
	return func(c *envConfig) { c.pool = pool }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	var cfg envConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	store := repository.NewMemoryStore()
	segments := &countingSegments{inner: store}
	clock := clockwork.NewFakeClockAt(epoch)
	logger := zap.NewNop()

	scorer := scoring.NewScorer(segments, store)
	builder := scoring.NewBuilder(scorer, cfg.pool, logger)
	return &testEnv{
		svc:      NewCompetitionService(store, cfg.cache, scorer, builder, clock, logger),
		store:    store,
		segments: segments,
		clock:    clock,
	}
}

// createCompetition creates an open competition on saved CO2 running one day
// before and a week after epoch
func (e *testEnv) createCompetition(t *testing.T, mutate ...func(*models.CreateCompetitionRequest)) *models.Competition {
	t.Helper()
	req := models.CreateCompetitionRequest{
		Name:            "Clean Air Month",
		Criteria:        []competition.Criterion{competition.CriterionSavedCO2Emissions},
		WinnerThreshold: 2,
		StartDate:       epoch.Add(-24 * time.Hour),
		EndDate:         epoch.Add(7 * 24 * time.Hour),
	}
	for _, m := range mutate {
		m(&req)
	}
	c, err := e.svc.CreateCompetition(context.Background(), req)
	require.NoError(t, err)
	return c
}

// addRider gives userID a profile and one segment saving co2, then registers
// it with the given status
func (e *testEnv) addRider(t *testing.T, c *models.Competition, userID string, co2 float64, status competition.RegistrationStatus) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.UpsertProfile(ctx, &models.Profile{
		UserID:   userID,
		Username: userID,
		AgeGroup: competition.AgeBetweenNineteenAndThirty,
	}))
	e.addSegment(t, userID, co2)

	_, err := e.svc.RegisterParticipant(ctx, c.ID, userID)
	require.NoError(t, err)
	if status != competition.StatusPendingModeration {
		_, err = e.svc.ModerateParticipant(ctx, c.ID, userID, models.ModerateParticipantRequest{Status: status})
		require.NoError(t, err)
	}
}

func (e *testEnv) addSegment(t *testing.T, userID string, co2 float64) {
	t.Helper()
	require.NoError(t, e.store.CreateSegment(context.Background(), &models.Segment{
		UserID:      userID,
		VehicleType: "bike",
		Geom:        "LINESTRING(2.35 48.85, 2.36 48.86)",
		StartDate:   epoch.Add(-time.Hour),
		EndDate:     epoch.Add(-30 * time.Minute),
		Emission:    &models.SegmentEmission{CO2Saved: &co2},
	}))
}

// attachPrizes attaches P1 to every winner and P2 to the first place only
func (e *testEnv) attachPrizes(t *testing.T, c *models.Competition) {
	t.Helper()
	ctx := context.Background()
	p1 := &models.Prize{Name: "P1"}
	p2 := &models.Prize{Name: "P2"}
	require.NoError(t, e.svc.CreatePrize(ctx, p1))
	require.NoError(t, e.svc.CreatePrize(ctx, p2))

	first := 1
	_, err := e.svc.AttachPrize(ctx, c.ID, models.AttachPrizeRequest{PrizeID: p1.ID, PrizeAttributionTemplate: "{rank_ordinal} with {score}"})
	require.NoError(t, err)
	_, err = e.svc.AttachPrize(ctx, c.ID, models.AttachPrizeRequest{PrizeID: p2.ID, UserRank: &first})
	require.NoError(t, err)
}

// seedTie registers A and B tied on 500 and C on 200
func (e *testEnv) seedTie(t *testing.T, c *models.Competition) {
	t.Helper()
	e.addRider(t, c, "A", 500, competition.StatusApproved)
	e.addRider(t, c, "B", 500, competition.StatusApproved)
	e.addRider(t, c, "C", 200, competition.StatusApproved)
}

func (e *testEnv) finish(c *models.Competition) {
	e.clock.Advance(c.EndDate.Sub(e.clock.Now()) + time.Minute)
}

func userIDs(entries []competition.ScoreEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	return ids
}

func prizeNames(a competition.Award) []string {
	names := make([]string, 0, len(a.Prizes))
	for _, p := range a.Prizes {
		names = append(names, p.PrizeName)
	}
	return names
}

func TestCompetitionService_CreateCompetition(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCompetition(t)

	assert.NotEmpty(t, c.ID)
	assert.Regexp(t, `^clean-air-month-[0-9a-f]{8}$`, c.Slug)

	bySlug, err := env.svc.GetCompetition(context.Background(), c.Slug)
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySlug.ID)

	tests := []struct {
		name   string
		mutate func(*models.CreateCompetitionRequest)
	}{
		{"end before start", func(r *models.CreateCompetitionRequest) { r.EndDate = r.StartDate.Add(-time.Hour) }},
		{"unknown criterion", func(r *models.CreateCompetitionRequest) { r.Criteria = []competition.Criterion{"saved_water"} }},
		{"no criteria", func(r *models.CreateCompetitionRequest) { r.Criteria = nil }},
		{"zero threshold", func(r *models.CreateCompetitionRequest) { r.WinnerThreshold = 0 }},
		{"unknown age group", func(r *models.CreateCompetitionRequest) { r.AgeGroups = []competition.AgeGroup{"toddler"} }},
		{"point region", func(r *models.CreateCompetitionRequest) { r.RegionWKT = "POINT(1 1)" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.CreateCompetitionRequest{
				Name:            "Broken",
				Criteria:        []competition.Criterion{competition.CriterionSavedCO2Emissions},
				WinnerThreshold: 1,
				StartDate:       epoch,
				EndDate:         epoch.Add(time.Hour),
			}
			tt.mutate(&req)
			_, err := env.svc.CreateCompetition(context.Background(), req)
			assert.ErrorIs(t, err, competition.ErrInvalidConfiguration)
		})
	}
}

func TestCompetitionService_ListCompetitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	open := env.createCompetition(t)
	upcoming := env.createCompetition(t, func(r *models.CreateCompetitionRequest) {
		r.Name = "Summer Ride"
		r.StartDate = epoch.Add(30 * 24 * time.Hour)
		r.EndDate = epoch.Add(60 * 24 * time.Hour)
	})

	list, err := env.svc.ListCompetitions(ctx, competition.StateOpen)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	list, err = env.svc.ListCompetitions(ctx, competition.StateUpcoming)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, upcoming.ID, list[0].ID)

	list, err = env.svc.ListCompetitions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = env.svc.ListCompetitions(ctx, "finished")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCompetitionService_Registration(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t)

	p, err := env.svc.RegisterParticipant(ctx, c.Slug, "alice")
	require.NoError(t, err)
	assert.Equal(t, competition.StatusPendingModeration, p.RegistrationStatus)

	again, err := env.svc.RegisterParticipant(ctx, c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	_, err = env.svc.RegisterParticipant(ctx, c.ID, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = env.svc.RegisterParticipant(ctx, "missing", "alice")
	assert.ErrorIs(t, err, competition.ErrCompetitionNotFound)

	moderated, err := env.svc.ModerateParticipant(ctx, c.ID, "alice", models.ModerateParticipantRequest{
		Status:        competition.StatusRejected,
		Justification: "duplicate account",
	})
	require.NoError(t, err)
	assert.Equal(t, competition.StatusRejected, moderated.RegistrationStatus)
	assert.Equal(t, "duplicate account", moderated.RegistrationJustification)

	_, err = env.svc.ModerateParticipant(ctx, c.ID, "alice", models.ModerateParticipantRequest{Status: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = env.svc.ModerateParticipant(ctx, c.ID, "bob", models.ModerateParticipantRequest{Status: competition.StatusApproved})
	assert.ErrorIs(t, err, competition.ErrParticipantNotFound)

	rejected, err := env.svc.ListParticipants(ctx, c.ID, competition.StatusRejected)
	require.NoError(t, err)
	assert.Len(t, rejected, 1)

	_, err = env.svc.ListParticipants(ctx, c.ID, "unknown")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	env.finish(c)
	_, err = env.svc.RegisterParticipant(ctx, c.ID, "late")
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestCompetitionService_SponsorsAndPrizes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.CreateSponsor(ctx, models.CreateSponsorRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	sponsor, err := env.svc.CreateSponsor(ctx, models.CreateSponsorRequest{Name: "Velo Paris", URL: "https://velo.example.com"})
	require.NoError(t, err)

	prize, err := env.svc.CreatePrizeFromRequest(ctx, models.CreatePrizeRequest{Name: "Voucher", SponsorID: &sponsor.ID})
	require.NoError(t, err)
	require.NotNil(t, prize.Sponsor)
	assert.Equal(t, "Velo Paris", prize.Sponsor.Name)

	unknown := uuid.NewString()
	_, err = env.svc.CreatePrizeFromRequest(ctx, models.CreatePrizeRequest{Name: "Voucher", SponsorID: &unknown})
	assert.ErrorIs(t, err, competition.ErrSponsorNotFound)

	_, err = env.svc.CreatePrizeFromRequest(ctx, models.CreatePrizeRequest{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCompetitionService_AttachPrize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t)

	_, err := env.svc.AttachPrize(ctx, c.ID, models.AttachPrizeRequest{PrizeID: uuid.NewString()})
	assert.ErrorIs(t, err, competition.ErrPrizeNotFound)

	_, err = env.svc.AttachPrize(ctx, c.ID, models.AttachPrizeRequest{PrizeID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	prize := &models.Prize{Name: "Helmet"}
	require.NoError(t, env.svc.CreatePrize(ctx, prize))
	_, err = uuid.Parse(prize.ID)
	require.NoError(t, err)

	rank := 5
	cp, err := env.svc.AttachPrize(ctx, c.ID, models.AttachPrizeRequest{PrizeID: prize.ID, UserRank: &rank})
	require.NoError(t, err)
	assert.Equal(t, "Helmet", cp.Prize.Name)
	assert.Equal(t, c.ID, cp.CompetitionID)
}

func TestCompetitionService_LiveLeaderboard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t)
	env.seedTie(t, c)
	env.addRider(t, c, "D", 900, competition.StatusPendingModeration)
	env.addRider(t, c, "E", 900, competition.StatusRejected)

	lb, state, err := env.svc.GetLeaderboard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, competition.StateOpen, state)
	assert.False(t, lb.Frozen)
	assert.Equal(t, []string{"A", "B", "C"}, userIDs(lb.Entries))

	// Live boards follow new segments
	env.addSegment(t, "C", 400)
	lb, _, err = env.svc.GetLeaderboard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, userIDs(lb.Entries))

	page, err := env.svc.GetLeaderboardPage(ctx, c.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, 2, page.Data[0].Rank)
	assert.Equal(t, "A", page.Data[0].UserID)
	assert.Equal(t, 500.0, page.Data[0].TotalScore)

	page, err = env.svc.GetLeaderboardPage(ctx, c.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 50, page.Limit)

	assert.NotPanics(t, func() {
		page, err = env.svc.GetLeaderboardPage(ctx, c.ID, math.MaxInt, 50)
	})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 3, page.Total)
}

func TestCompetitionService_AgeGroupMismatchScoresZero(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t, func(r *models.CreateCompetitionRequest) {
		r.AgeGroups = []competition.AgeGroup{competition.AgeOlderThanSixtyFive}
	})
	env.addRider(t, c, "A", 500, competition.StatusApproved)

	lb, _, err := env.svc.GetLeaderboard(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	assert.Zero(t, lb.Entries[0].Total)

	points, err := env.svc.GetUserScore(ctx, c.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, map[competition.Criterion]float64{competition.CriterionSavedCO2Emissions: 0}, points)
}

func TestCompetitionService_UpcomingLeaderboardIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCompetition(t, func(r *models.CreateCompetitionRequest) {
		r.StartDate = epoch.Add(time.Hour)
		r.EndDate = epoch.Add(48 * time.Hour)
	})
	env.addRider(t, c, "A", 500, competition.StatusApproved)

	lb, state, err := env.svc.GetLeaderboard(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, competition.StateUpcoming, state)
	assert.Empty(t, lb.Entries)
	assert.Zero(t, env.segments.calls.Load())
}

func TestCompetitionService_GetUserScore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t, func(r *models.CreateCompetitionRequest) {
		r.Criteria = []competition.Criterion{competition.CriterionSavedCO2Emissions, competition.CriterionSavedNOxEmissions}
	})
	env.addRider(t, c, "A", 500, competition.StatusApproved)
	env.addRider(t, c, "P", 500, competition.StatusPendingModeration)

	points, err := env.svc.GetUserScore(ctx, c.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, map[competition.Criterion]float64{
		competition.CriterionSavedCO2Emissions: 500,
		competition.CriterionSavedNOxEmissions: 0,
	}, points)

	points, err = env.svc.GetUserScore(ctx, c.ID, "P")
	require.NoError(t, err)
	assert.Empty(t, points)

	points, err = env.svc.GetUserScore(ctx, c.ID, "stranger")
	require.NoError(t, err)
	assert.Empty(t, points)

	// Approved without a profile
	_, err = env.svc.RegisterParticipant(ctx, c.ID, "ghost")
	require.NoError(t, err)
	_, err = env.svc.ModerateParticipant(ctx, c.ID, "ghost", models.ModerateParticipantRequest{Status: competition.StatusApproved})
	require.NoError(t, err)
	_, err = env.svc.GetUserScore(ctx, c.ID, "ghost")
	assert.True(t, competition.IsUserNotFound(err))

	// The leaderboard skips the unresolvable user
	lb, _, err := env.svc.GetLeaderboard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, userIDs(lb.Entries))
}

func TestCompetitionService_GetScoreCardResolvesSlug(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCompetition(t)
	env.addRider(t, c, "A", 500, competition.StatusApproved)

	card, err := env.svc.GetScoreCard(context.Background(), c.Slug, "A")
	require.NoError(t, err)
	assert.Equal(t, c.ID, card.CompetitionID)
	assert.Equal(t, 500.0, card.TotalScore)

	_, err = env.svc.GetScoreCard(context.Background(), "missing", "A")
	assert.ErrorIs(t, err, competition.ErrCompetitionNotFound)
}

func TestCompetitionService_UnsupportedCriterion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t, func(r *models.CreateCompetitionRequest) {
		r.Criteria = []competition.Criterion{competition.CriterionSavedCO2Emissions, competition.CriterionBikeDistance}
	})
	env.addRider(t, c, "A", 500, competition.StatusApproved)
	calls := env.segments.calls.Load()

	_, err := env.svc.GetUserScore(ctx, c.ID, "A")
	assert.True(t, competition.IsUnsupportedCriterion(err))

	_, _, err = env.svc.GetLeaderboard(ctx, c.ID)
	assert.True(t, competition.IsUnsupportedCriterion(err))

	var unsupported *competition.UnsupportedCriterionError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, competition.CriterionBikeDistance, unsupported.Criterion)
	assert.Equal(t, calls, env.segments.calls.Load())
}

func TestCompetitionService_CloseFreezesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t)
	env.seedTie(t, c)

	_, err := env.svc.CloseCompetition(ctx, c.ID)
	assert.ErrorIs(t, err, competition.ErrCompetitionNotClosed)

	env.finish(c)
	first, err := env.svc.CloseCompetition(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, first.Frozen)
	require.NotNil(t, first.FrozenAt)
	assert.Equal(t, []string{"A", "B", "C"}, userIDs(first.Entries))

	// Segments changing after the close never reach the snapshot
	env.store.DeleteSegments(ctx, "A")
	env.addSegment(t, "C", 10000)
	env.clock.Advance(time.Hour)

	second, err := env.svc.CloseCompetition(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Entries, second.Entries)
	assert.True(t, first.FrozenAt.Equal(*second.FrozenAt))

	lb, state, err := env.svc.GetLeaderboard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, competition.StateClosed, state)
	assert.Equal(t, first.Entries, lb.Entries)

	points, err := env.svc.GetUserScore(ctx, c.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, 500.0, points[competition.CriterionSavedCO2Emissions])
}

func TestCompetitionService_ConcurrentCloseComputesOnce(t *testing.T) {
	ctx := context.Background()
	pool := worker.NewWorkerPool(4, 16, zap.NewNop())
	pool.Start()
	t.Cleanup(func() { _ = pool.Shutdown(time.Second) })

	env := newTestEnv(t, withPool(pool))
	c := env.createCompetition(t)
	env.seedTie(t, c)
	env.finish(c)
	before := env.segments.calls.Load()

	const callers = 8
	results := make([]competition.Leaderboard, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lb, err := env.svc.CloseCompetition(ctx, c.ID)
			assert.NoError(t, err)
			results[i] = lb
		}(i)
	}
	wg.Wait()

	// One criterion for three riders, computed by a single caller
	assert.Equal(t, int64(3), env.segments.calls.Load()-before)
	for _, lb := range results[1:] {
		assert.Equal(t, results[0].Entries, lb.Entries)
	}
}

func TestCompetitionService_LazyFreezeOnRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t)
	env.seedTie(t, c)
	env.finish(c)

	lb, state, err := env.svc.GetLeaderboard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, competition.StateClosed, state)
	assert.True(t, lb.Frozen)

	stored, err := env.store.GetCompetition(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsFrozen())
}

func TestCompetitionService_AssignWinners(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t)
	env.seedTie(t, c)
	env.attachPrizes(t, c)

	_, err := env.svc.AssignWinners(ctx, c.ID)
	assert.ErrorIs(t, err, competition.ErrCompetitionNotClosed)

	env.finish(c)
	awards, err := env.svc.AssignWinners(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, awards, 2)

	assert.Equal(t, "A", awards[0].UserID)
	assert.Equal(t, 1, awards[0].Rank)
	assert.Equal(t, 500.0, awards[0].Score)
	assert.Equal(t, []string{"P1", "P2"}, prizeNames(awards[0]))
	assert.Equal(t, "1st with 500", awards[0].Prizes[0].Message)

	assert.Equal(t, "B", awards[1].UserID)
	assert.Equal(t, 2, awards[1].Rank)
	assert.Equal(t, []string{"P1"}, prizeNames(awards[1]))
	assert.Equal(t, "2nd with 500", awards[1].Prizes[0].Message)

	again, err := env.svc.AssignWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, awards, again)

	winners, err := env.store.ListWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, winners, 2)
}

func TestCompetitionService_AssignWinnersBelowThreshold(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t, func(r *models.CreateCompetitionRequest) { r.WinnerThreshold = 5 })
	env.addRider(t, c, "A", 10, competition.StatusApproved)
	env.attachPrizes(t, c)
	env.finish(c)

	awards, err := env.svc.AssignWinners(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, []string{"P1", "P2"}, prizeNames(awards[0]))
}

func TestCompetitionService_GetUserRank(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t)
	env.seedTie(t, c)

	_, err := env.svc.GetUserRank(ctx, c.ID, "A")
	assert.ErrorIs(t, err, competition.ErrCompetitionNotClosed)

	env.finish(c)
	rank, err := env.svc.GetUserRank(ctx, c.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, 2, rank.Rank)
	assert.Equal(t, 500.0, rank.TotalScore)

	_, err = env.svc.GetUserRank(ctx, c.ID, "stranger")
	assert.ErrorIs(t, err, competition.ErrParticipantNotFound)
}

func TestCompetitionService_SnapshotCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cache := repository.NewRedisRepository(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	t.Cleanup(func() { _ = cache.Close() })

	env := newTestEnv(t, withCache(cache))
	c := env.createCompetition(t)
	env.seedTie(t, c)
	env.finish(c)

	frozen, err := env.svc.CloseCompetition(ctx, c.ID)
	require.NoError(t, err)

	cached, err := cache.GetSnapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, frozen.Entries, cached.Entries)

	rank, err := env.svc.GetUserRank(ctx, c.ID, "C")
	require.NoError(t, err)
	assert.Equal(t, 3, rank.Rank)
	assert.Equal(t, 200.0, rank.TotalScore)

	_, err = env.svc.GetUserRank(ctx, c.ID, "stranger")
	assert.ErrorIs(t, err, competition.ErrParticipantNotFound)

	// Evicted snapshots are served from the store and cached again
	mr.FlushAll()
	lb, _, err := env.svc.GetLeaderboard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, frozen.Entries, lb.Entries)
	_, err = cache.GetSnapshot(ctx, c.ID)
	assert.NoError(t, err)

	require.NoError(t, env.svc.HealthCheck(ctx))
	mr.SetError("LOADING")
	assert.Error(t, env.svc.HealthCheck(ctx))
	mr.SetError("")
}

func TestCompetitionService_CheckTransitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ending := env.createCompetition(t)
	env.seedTie(t, ending)
	env.attachPrizes(t, ending)
	running := env.createCompetition(t, func(r *models.CreateCompetitionRequest) {
		r.Name = "Long Haul"
		r.EndDate = epoch.Add(90 * 24 * time.Hour)
	})

	closed, err := env.svc.CheckTransitions(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)

	env.finish(ending)
	closed, err = env.svc.CheckTransitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	winners, err := env.store.ListWinners(ctx, ending.ID)
	require.NoError(t, err)
	assert.Len(t, winners, 2)

	stillOpen, err := env.store.GetCompetition(ctx, running.ID)
	require.NoError(t, err)
	assert.False(t, stillOpen.IsFrozen())

	closed, err = env.svc.CheckTransitions(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
}

// flakyWinners fails the first failures non-empty winner writes
type flakyWinners struct {
	*repository.MemoryStore
	failures int
}

func (f *flakyWinners) RecordWinners(ctx context.Context, winners []models.Winner) error {
	if len(winners) > 0 && f.failures > 0 {
		f.failures--
		return errors.New("winners table locked")
	}
	return f.MemoryStore.RecordWinners(ctx, winners)
}

func TestCompetitionService_CheckTransitionsRetriesWinners(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.createCompetition(t)
	env.seedTie(t, c)
	empty := env.createCompetition(t, func(r *models.CreateCompetitionRequest) { r.Name = "Nobody Rode" })
	env.finish(c)

	// Fails the assignment after the freeze and its retry within the same sweep
	store := &flakyWinners{MemoryStore: env.store, failures: 2}
	scorer := scoring.NewScorer(env.store, env.store)
	svc := NewCompetitionService(store, nil, scorer, scoring.NewBuilder(scorer, nil, zap.NewNop()), env.clock, zap.NewNop())

	closed, err := svc.CheckTransitions(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, closed)

	frozen, err := env.store.GetCompetition(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, frozen.IsFrozen())
	winners, err := env.store.ListWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, winners)

	closed, err = svc.CheckTransitions(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)

	winners, err = env.store.ListWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, winners, 2)

	// An empty frozen leaderboard never waits for winners
	awaiting, err := env.store.ListCompetitions(ctx, repository.CompetitionQuery{
		State:           competition.StateClosed,
		At:              env.clock.Now(),
		AwaitingWinners: true,
	})
	require.NoError(t, err)
	assert.Empty(t, awaiting)

	stored, err := env.store.GetCompetition(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsFrozen())
}
