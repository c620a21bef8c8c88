package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prizeboard/internal/competition"
	"prizeboard/internal/geo"
	"prizeboard/internal/models"
	"prizeboard/internal/repository"
	"prizeboard/internal/scoring"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var (
	// ErrInvalidState is returned when a lifecycle state filter is not recognised
	ErrInvalidState = errors.New("unknown competition state")
	// ErrRegistrationClosed is returned when registering for a closed competition
	ErrRegistrationClosed = errors.New("competition is closed for registration")
	// ErrInvalidRequest is returned when a request payload fails validation
	ErrInvalidRequest = errors.New("invalid request")
)

// Store persists competitions, registrations, prizes and winners
type Store interface {
	CreateCompetition(ctx context.Context, c *models.Competition) error
	GetCompetition(ctx context.Context, ref string) (*models.Competition, error)
	ListCompetitions(ctx context.Context, q repository.CompetitionQuery) ([]models.Competition, error)

	RegisterParticipant(ctx context.Context, p *models.CompetitionParticipant) (*models.CompetitionParticipant, error)
	GetParticipant(ctx context.Context, competitionID, userID string) (*models.CompetitionParticipant, error)
	UpdateParticipantStatus(ctx context.Context, competitionID, userID string, status competition.RegistrationStatus, justification string) (*models.CompetitionParticipant, error)
	ListParticipants(ctx context.Context, q repository.ParticipantQuery) ([]models.CompetitionParticipant, error)

	CreateSponsor(ctx context.Context, sp *models.Sponsor) error
	CreatePrize(ctx context.Context, p *models.Prize) error
	GetPrize(ctx context.Context, id string) (*models.Prize, error)
	AttachPrize(ctx context.Context, cp *models.CompetitionPrize) error
	ListCompetitionPrizes(ctx context.Context, competitionID string) ([]models.CompetitionPrize, error)

	FreezeLeaderboard(ctx context.Context, competitionID string, closedAt time.Time, compute repository.ComputeFunc) (*models.Competition, bool, error)
	RecordWinners(ctx context.Context, winners []models.Winner) error
	ListWinners(ctx context.Context, competitionID string) ([]models.Winner, error)

	Ping(ctx context.Context) error
}

// SnapshotCache serves frozen leaderboards without touching the store
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, competitionID string) (competition.Leaderboard, error)
	PutSnapshot(ctx context.Context, lb competition.Leaderboard) error
	GetUserRank(ctx context.Context, competitionID, userID string) (int, float64, error)
	Ping(ctx context.Context) error
}

// CompetitionService handles business logic for competitions and their leaderboards
type CompetitionService struct {
	store    Store
	cache    SnapshotCache
	scorer   *scoring.Scorer
	builder  *scoring.Builder
	clock    clockwork.Clock
	logger   *zap.Logger
	validate *validator.Validate
}

// NewCompetitionService creates a new competition service. cache may be nil.
func NewCompetitionService(
	store Store,
	cache SnapshotCache,
	scorer *scoring.Scorer,
	builder *scoring.Builder,
	clock clockwork.Clock,
	logger *zap.Logger,
) *CompetitionService {
	return &CompetitionService{
		store:    store,
		cache:    cache,
		scorer:   scorer,
		builder:  builder,
		clock:    clock,
		logger:   logger,
		validate: competition.NewValidator(),
	}
}

// CreateCompetition validates and stores a new competition
func (s *CompetitionService) CreateCompetition(ctx context.Context, req models.CreateCompetitionRequest) (*models.Competition, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", competition.ErrInvalidConfiguration, err)
	}

	region, err := geo.ParseRegion(req.RegionWKT)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", competition.ErrInvalidConfiguration, err)
	}

	id := uuid.NewString()
	c := &models.Competition{
		ID:              id,
		Slug:            slug.Make(req.Name) + "-" + id[:8],
		Name:            req.Name,
		Description:     req.Description,
		Criteria:        req.Criteria,
		AgeGroups:       req.AgeGroups,
		WinnerThreshold: req.WinnerThreshold,
		StartDate:       req.StartDate.UTC(),
		EndDate:         req.EndDate.UTC(),
		RegionWKT:       geo.MarshalRegion(region),
	}
	if _, err := c.Info(); err != nil {
		return nil, err
	}

	if err := s.store.CreateCompetition(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create competition: %w", err)
	}

	s.logger.Info("competition created",
		zap.String("competition_id", c.ID),
		zap.String("slug", c.Slug),
		zap.Time("start_date", c.StartDate),
		zap.Time("end_date", c.EndDate))
	return c, nil
}

// GetCompetition retrieves a competition by id or slug
func (s *CompetitionService) GetCompetition(ctx context.Context, ref string) (*models.Competition, error) {
	return s.store.GetCompetition(ctx, ref)
}

// ListCompetitions lists competitions in the given lifecycle state now. An
// empty state lists every competition.
func (s *CompetitionService) ListCompetitions(ctx context.Context, state competition.State) ([]models.Competition, error) {
	if state != "" && !state.Known() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	return s.store.ListCompetitions(ctx, repository.CompetitionQuery{
		State: state,
		At:    s.clock.Now(),
	})
}

// RegisterParticipant registers a user for a competition pending moderation.
// Registering twice returns the existing registration.
func (s *CompetitionService) RegisterParticipant(ctx context.Context, ref, userID string) (*models.CompetitionParticipant, error) {
	if err := s.validate.Struct(&models.RegisterParticipantRequest{UserID: userID}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return nil, err
	}
	if c.State(s.clock.Now()) == competition.StateClosed {
		return nil, ErrRegistrationClosed
	}

	p, err := s.store.RegisterParticipant(ctx, &models.CompetitionParticipant{
		ID:                 uuid.NewString(),
		CompetitionID:      c.ID,
		UserID:             userID,
		RegistrationStatus: competition.StatusPendingModeration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register participant: %w", err)
	}
	return p, nil
}

// ModerateParticipant records a moderation decision on a registration
func (s *CompetitionService) ModerateParticipant(ctx context.Context, ref, userID string, req models.ModerateParticipantRequest) (*models.CompetitionParticipant, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return nil, err
	}

	p, err := s.store.UpdateParticipantStatus(ctx, c.ID, userID, req.Status, req.Justification)
	if err != nil {
		return nil, err
	}

	s.logger.Info("participant moderated",
		zap.String("competition_id", c.ID),
		zap.String("user_id", userID),
		zap.String("status", string(req.Status)))
	return p, nil
}

// ListParticipants lists the registrations of a competition, optionally
// restricted to one status
func (s *CompetitionService) ListParticipants(ctx context.Context, ref string, status competition.RegistrationStatus) ([]models.CompetitionParticipant, error) {
	if status != "" && !status.Known() {
		return nil, fmt.Errorf("%w: unknown registration status %q", ErrInvalidRequest, status)
	}

	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, repository.ParticipantQuery{
		CompetitionID: c.ID,
		Status:        status,
	})
}

// CreateSponsor stores a new sponsor
func (s *CompetitionService) CreateSponsor(ctx context.Context, req models.CreateSponsorRequest) (*models.Sponsor, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	sp := &models.Sponsor{ID: uuid.NewString(), Name: req.Name, URL: req.URL}
	if err := s.store.CreateSponsor(ctx, sp); err != nil {
		return nil, fmt.Errorf("failed to create sponsor: %w", err)
	}
	return sp, nil
}

// CreatePrize stores a new prize
func (s *CompetitionService) CreatePrize(ctx context.Context, p *models.Prize) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.store.CreatePrize(ctx, p); err != nil {
		return fmt.Errorf("failed to create prize: %w", err)
	}
	return nil
}

// CreatePrizeFromRequest validates a catalogue request and stores the prize
func (s *CompetitionService) CreatePrizeFromRequest(ctx context.Context, req models.CreatePrizeRequest) (*models.Prize, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p := &models.Prize{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		SponsorID:   req.SponsorID,
	}
	if err := s.CreatePrize(ctx, p); err != nil {
		return nil, err
	}
	return s.store.GetPrize(ctx, p.ID)
}

// AttachPrize binds an existing prize to a competition
func (s *CompetitionService) AttachPrize(ctx context.Context, ref string, req models.AttachPrizeRequest) (*models.CompetitionPrize, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return nil, err
	}
	prize, err := s.store.GetPrize(ctx, req.PrizeID)
	if err != nil {
		return nil, err
	}

	cp := &models.CompetitionPrize{
		ID:                       uuid.NewString(),
		CompetitionID:            c.ID,
		PrizeID:                  prize.ID,
		UserRank:                 req.UserRank,
		PrizeAttributionTemplate: req.PrizeAttributionTemplate,
	}
	if err := s.store.AttachPrize(ctx, cp); err != nil {
		return nil, fmt.Errorf("failed to attach prize: %w", err)
	}
	cp.Prize = *prize

	if req.UserRank != nil && *req.UserRank > c.WinnerThreshold {
		s.logger.Warn("prize targets a rank beyond the winner threshold and will never be awarded",
			zap.String("competition_id", c.ID),
			zap.String("prize_id", prize.ID),
			zap.Int("user_rank", *req.UserRank),
			zap.Int("winner_threshold", c.WinnerThreshold))
	}
	return cp, nil
}

// GetLeaderboard returns the leaderboard of a competition: empty while
// upcoming, computed live while open and the frozen closing snapshot once
// closed
func (s *CompetitionService) GetLeaderboard(ctx context.Context, ref string) (competition.Leaderboard, competition.State, error) {
	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return competition.Leaderboard{}, "", err
	}
	info, err := c.Info()
	if err != nil {
		return competition.Leaderboard{}, "", err
	}

	state := c.State(s.clock.Now())
	switch state {
	case competition.StateUpcoming:
		return competition.Leaderboard{CompetitionID: c.ID, Entries: []competition.ScoreEntry{}}, state, nil
	case competition.StateClosed:
		lb, err := s.snapshot(ctx, c, info)
		return lb, state, err
	default:
		lb, err := s.live(ctx, info)
		return lb, state, err
	}
}

// GetLeaderboardPage returns one page of a competition's leaderboard
func (s *CompetitionService) GetLeaderboardPage(ctx context.Context, ref string, offset, limit int) (*models.LeaderboardResponse, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	lb, state, err := s.GetLeaderboard(ctx, ref)
	if err != nil {
		return nil, err
	}

	start := min(offset, len(lb.Entries))
	end := start + min(limit, len(lb.Entries)-start)
	data := make([]models.LeaderboardEntry, 0, end-start)
	for i, e := range lb.Entries[start:end] {
		data = append(data, models.LeaderboardEntry{
			Rank:           start + i + 1,
			UserID:         e.UserID,
			TotalScore:     e.Total,
			CriteriaPoints: e.CriteriaPoints,
		})
	}

	return &models.LeaderboardResponse{
		CompetitionID: lb.CompetitionID,
		State:         state,
		Frozen:        lb.Frozen,
		FrozenAt:      lb.FrozenAt,
		Data:          data,
		Offset:        offset,
		Limit:         limit,
		Total:         len(lb.Entries),
	}, nil
}

// GetUserScore returns the per-criterion points of a user. Users without an
// approved registration get an empty mapping. Closed competitions answer
// from the frozen snapshot.
func (s *CompetitionService) GetUserScore(ctx context.Context, ref, userID string) (map[competition.Criterion]float64, error) {
	_, points, err := s.userScore(ctx, ref, userID)
	return points, err
}

// GetScoreCard is GetUserScore keyed by the resolved competition id, with the
// aggregated total
func (s *CompetitionService) GetScoreCard(ctx context.Context, ref, userID string) (*models.ScoreResponse, error) {
	c, points, err := s.userScore(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	return &models.ScoreResponse{
		CompetitionID:  c.ID,
		UserID:         userID,
		CriteriaPoints: points,
		TotalScore:     competition.Aggregate(points),
	}, nil
}

func (s *CompetitionService) userScore(ctx context.Context, ref, userID string) (*models.Competition, map[competition.Criterion]float64, error) {
	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	info, err := c.Info()
	if err != nil {
		return nil, nil, err
	}
	for _, cr := range info.Criteria {
		if !cr.Supported() {
			return nil, nil, &competition.UnsupportedCriterionError{Criterion: cr}
		}
	}

	p, err := s.store.GetParticipant(ctx, c.ID, userID)
	if err != nil {
		if errors.Is(err, competition.ErrParticipantNotFound) {
			return c, map[competition.Criterion]float64{}, nil
		}
		return nil, nil, err
	}
	if !competition.IsApproved(p.Participant()) {
		return c, map[competition.Criterion]float64{}, nil
	}

	if c.State(s.clock.Now()) == competition.StateClosed {
		lb, err := s.snapshot(ctx, c, info)
		if err != nil {
			return nil, nil, err
		}
		entry, ok := lb.Entry(userID)
		if !ok {
			return c, map[competition.Criterion]float64{}, nil
		}
		return c, entry.CriteriaPoints, nil
	}

	entry, err := s.scorer.ScoreUser(ctx, info, userID)
	if err != nil {
		return nil, nil, err
	}
	return c, entry.CriteriaPoints, nil
}

// GetUserRank returns the placement of a user in a closed competition
func (s *CompetitionService) GetUserRank(ctx context.Context, ref, userID string) (*models.RankResponse, error) {
	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return nil, err
	}
	if c.State(s.clock.Now()) != competition.StateClosed {
		return nil, competition.ErrCompetitionNotClosed
	}

	if s.cache != nil {
		rank, total, err := s.cache.GetUserRank(ctx, c.ID, userID)
		switch {
		case err == nil && rank > 0:
			return &models.RankResponse{CompetitionID: c.ID, UserID: userID, Rank: rank, TotalScore: total}, nil
		case err == nil:
			return nil, competition.ErrParticipantNotFound
		case !errors.Is(err, repository.ErrCacheMiss):
			s.logger.Warn("snapshot cache rank lookup failed", zap.String("competition_id", c.ID), zap.Error(err))
		}
	}

	info, err := c.Info()
	if err != nil {
		return nil, err
	}
	lb, err := s.snapshot(ctx, c, info)
	if err != nil {
		return nil, err
	}
	entry, ok := lb.Entry(userID)
	if !ok {
		return nil, competition.ErrParticipantNotFound
	}
	return &models.RankResponse{
		CompetitionID: c.ID,
		UserID:        userID,
		Rank:          lb.Rank(userID),
		TotalScore:    entry.Total,
	}, nil
}

// CloseCompetition freezes the leaderboard of a closed competition and
// returns the snapshot. Repeated calls return the snapshot written first.
func (s *CompetitionService) CloseCompetition(ctx context.Context, ref string) (competition.Leaderboard, error) {
	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return competition.Leaderboard{}, err
	}
	if c.State(s.clock.Now()) != competition.StateClosed {
		return competition.Leaderboard{}, competition.ErrCompetitionNotClosed
	}
	info, err := c.Info()
	if err != nil {
		return competition.Leaderboard{}, err
	}
	return s.freeze(ctx, c, info)
}

// AssignWinners derives the winners of a closed competition from its frozen
// leaderboard and attributes their prizes. Winners are written once; calling
// again returns the same set.
func (s *CompetitionService) AssignWinners(ctx context.Context, ref string) ([]competition.Award, error) {
	c, err := s.store.GetCompetition(ctx, ref)
	if err != nil {
		return nil, err
	}
	if c.State(s.clock.Now()) != competition.StateClosed {
		return nil, competition.ErrCompetitionNotClosed
	}
	info, err := c.Info()
	if err != nil {
		return nil, err
	}

	lb, err := s.snapshot(ctx, c, info)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.ListParticipants(ctx, repository.ParticipantQuery{CompetitionID: c.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	byUser := make(map[string]string, len(participants))
	for _, p := range participants {
		byUser[p.UserID] = p.ID
	}

	rows, err := s.store.ListCompetitionPrizes(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prizes: %w", err)
	}
	rules := make([]competition.PrizeRule, 0, len(rows))
	for i := range rows {
		rules = append(rules, rows[i].Rule())
	}

	candidates := competition.AssignWinners(lb, info.WinnerThreshold, rules)
	winners := make([]models.Winner, 0, len(candidates))
	for _, a := range candidates {
		participantID, ok := byUser[a.UserID]
		if !ok {
			s.logger.Warn("skipping winner without a registration",
				zap.String("competition_id", c.ID),
				zap.String("user_id", a.UserID),
				zap.Int("rank", a.Rank))
			continue
		}
		winners = append(winners, models.Winner{
			ID:            uuid.NewString(),
			CompetitionID: c.ID,
			ParticipantID: participantID,
			UserID:        a.UserID,
			Rank:          a.Rank,
		})
	}
	if err := s.store.RecordWinners(ctx, winners); err != nil {
		return nil, fmt.Errorf("failed to record winners: %w", err)
	}

	persisted, err := s.store.ListWinners(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	awards := make([]competition.Award, 0, len(persisted))
	for i := range persisted {
		w := persisted[i].Winner()
		entry, _ := lb.Entry(w.UserID)
		awards = append(awards, competition.Attribute(w, entry.Total, info.WinnerThreshold, rules))
	}
	return awards, nil
}

// CheckTransitions freezes every closed competition that has no snapshot yet
// and assigns its winners. Frozen competitions whose winner assignment failed
// on an earlier sweep are retried. It returns how many competitions it closed.
func (s *CompetitionService) CheckTransitions(ctx context.Context) (int, error) {
	now := s.clock.Now()
	pending, err := s.store.ListCompetitions(ctx, repository.CompetitionQuery{
		State:        competition.StateClosed,
		At:           now,
		OnlyUnfrozen: true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list closable competitions: %w", err)
	}

	var (
		closed int
		errs   []error
	)
	for _, c := range pending {
		if _, err := s.CloseCompetition(ctx, c.ID); err != nil {
			s.logger.Error("failed to close competition", zap.String("competition_id", c.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.ID, err))
			continue
		}
		awards, err := s.AssignWinners(ctx, c.ID)
		if err != nil {
			s.logger.Error("failed to assign winners", zap.String("competition_id", c.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("assign winners %s: %w", c.ID, err))
			continue
		}
		closed++
		s.logger.Info("competition closed",
			zap.String("competition_id", c.ID),
			zap.Int("winners", len(awards)))
	}

	stalled, err := s.store.ListCompetitions(ctx, repository.CompetitionQuery{
		State:           competition.StateClosed,
		At:              now,
		AwaitingWinners: true,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list competitions awaiting winners: %w", err))
		return closed, errors.Join(errs...)
	}
	for _, c := range stalled {
		awards, err := s.AssignWinners(ctx, c.ID)
		if err != nil {
			s.logger.Error("failed to assign winners", zap.String("competition_id", c.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("assign winners %s: %w", c.ID, err))
			continue
		}
		s.logger.Info("winners assigned on retry",
			zap.String("competition_id", c.ID),
			zap.Int("winners", len(awards)))
	}
	return closed, errors.Join(errs...)
}

// HealthCheck checks the store and, when configured, the snapshot cache
func (s *CompetitionService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unhealthy: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			return fmt.Errorf("cache unhealthy: %w", err)
		}
	}
	return nil
}

func (s *CompetitionService) live(ctx context.Context, info competition.CompetitionInfo) (competition.Leaderboard, error) {
	roster, err := s.roster(ctx, info.ID)
	if err != nil {
		return competition.Leaderboard{}, err
	}
	return s.builder.Build(ctx, info, roster)
}

func (s *CompetitionService) roster(ctx context.Context, competitionID string) ([]competition.Participant, error) {
	rows, err := s.store.ListParticipants(ctx, repository.ParticipantQuery{
		CompetitionID: competitionID,
		Status:        competition.StatusApproved,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	roster := make([]competition.Participant, 0, len(rows))
	for i := range rows {
		roster = append(roster, rows[i].Participant())
	}
	return roster, nil
}

// snapshot returns the frozen leaderboard of a closed competition, freezing
// it first when the closing sweep has not reached it yet
func (s *CompetitionService) snapshot(ctx context.Context, c *models.Competition, info competition.CompetitionInfo) (competition.Leaderboard, error) {
	if s.cache != nil {
		lb, err := s.cache.GetSnapshot(ctx, c.ID)
		if err == nil {
			return lb, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("snapshot cache read failed", zap.String("competition_id", c.ID), zap.Error(err))
		}
	}

	if !c.IsFrozen() {
		return s.freeze(ctx, c, info)
	}
	lb, err := c.Snapshot()
	if err != nil {
		return competition.Leaderboard{}, err
	}
	s.cacheSnapshot(ctx, lb)
	return lb, nil
}

func (s *CompetitionService) freeze(ctx context.Context, c *models.Competition, info competition.CompetitionInfo) (competition.Leaderboard, error) {
	frozen, created, err := s.store.FreezeLeaderboard(ctx, c.ID, s.clock.Now().UTC(), func(ctx context.Context) ([]competition.ScoreEntry, error) {
		lb, err := s.live(ctx, info)
		if err != nil {
			return nil, err
		}
		return lb.Entries, nil
	})
	if err != nil {
		return competition.Leaderboard{}, fmt.Errorf("failed to freeze leaderboard: %w", err)
	}

	lb, err := frozen.Snapshot()
	if err != nil {
		return competition.Leaderboard{}, err
	}
	if created {
		s.logger.Info("leaderboard frozen",
			zap.String("competition_id", c.ID),
			zap.Int("entries", len(lb.Entries)))
	}
	s.cacheSnapshot(ctx, lb)
	return lb, nil
}

func (s *CompetitionService) cacheSnapshot(ctx context.Context, lb competition.Leaderboard) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutSnapshot(ctx, lb); err != nil {
		s.logger.Warn("failed to cache snapshot", zap.String("competition_id", lb.CompetitionID), zap.Error(err))
	}
}
