package repository

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"prizeboard/internal/competition"
	"prizeboard/internal/geo"
	"prizeboard/internal/models"
	"prizeboard/internal/scoring"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

type memorySegment struct {
	segment models.Segment
	track   orb.LineString
}

// MemoryStore keeps every table in process memory. It backs the memory store
// driver and the service tests.
type MemoryStore struct {
	mu           sync.RWMutex
	competitions map[string]models.Competition
	participants []models.CompetitionParticipant
	sponsors     map[string]models.Sponsor
	prizes       map[string]models.Prize
	rules        []models.CompetitionPrize
	winners      []models.Winner
	profiles     map[string]models.Profile
	segments     []memorySegment

	freezeMu sync.Mutex
	freezing map[string]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		competitions: make(map[string]models.Competition),
		sponsors:     make(map[string]models.Sponsor),
		prizes:       make(map[string]models.Prize),
		profiles:     make(map[string]models.Profile),
		freezing:     make(map[string]*sync.Mutex),
	}
}

// CreateCompetition inserts a new competition
func (m *MemoryStore) CreateCompetition(_ context.Context, c *models.Competition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.competitions[c.ID]; ok {
		return fmt.Errorf("competition %s already exists", c.ID)
	}
	for _, existing := range m.competitions {
		if existing.Slug == c.Slug {
			return fmt.Errorf("competition slug %q already exists", c.Slug)
		}
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	stored := *c
	stored.Prizes = nil
	m.competitions[c.ID] = stored
	return nil
}

// GetCompetition retrieves a competition by id or slug
func (m *MemoryStore) GetCompetition(_ context.Context, ref string) (*models.Competition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.competition(ref)
}

func (m *MemoryStore) competition(ref string) (*models.Competition, error) {
	if c, ok := m.competitions[ref]; ok {
		return &c, nil
	}
	for _, c := range m.competitions {
		if c.Slug == ref {
			return &c, nil
		}
	}
	return nil, competition.ErrCompetitionNotFound
}

// ListCompetitions retrieves the competitions matching q, ordered by name then start date
func (m *MemoryStore) ListCompetitions(_ context.Context, q CompetitionQuery) ([]models.Competition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Competition
	for _, c := range m.competitions {
		if q.State != "" && c.State(q.At) != q.State {
			continue
		}
		if q.OnlyUnfrozen && c.IsFrozen() {
			continue
		}
		if q.AwaitingWinners && !m.awaitingWinners(c) {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b models.Competition) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return a.StartDate.Compare(b.StartDate)
	})
	return out, nil
}

func (m *MemoryStore) awaitingWinners(c models.Competition) bool {
	if !c.IsFrozen() || bytes.Equal(bytes.TrimSpace(c.ClosingLeaderboard), []byte("[]")) {
		return false
	}
	return !slices.ContainsFunc(m.winners, func(w models.Winner) bool {
		return w.CompetitionID == c.ID
	})
}

// RegisterParticipant inserts a registration unless the user already has one
// for the competition, and returns the stored row
func (m *MemoryStore) RegisterParticipant(_ context.Context, p *models.CompetitionParticipant) (*models.CompetitionParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.participantIndex(p.CompetitionID, p.UserID); i >= 0 {
		existing := m.participants[i]
		return &existing, nil
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.participants = append(m.participants, *p)
	stored := *p
	return &stored, nil
}

func (m *MemoryStore) participantIndex(competitionID, userID string) int {
	return slices.IndexFunc(m.participants, func(p models.CompetitionParticipant) bool {
		return p.CompetitionID == competitionID && p.UserID == userID
	})
}

// GetParticipant retrieves the registration of a user for a competition
func (m *MemoryStore) GetParticipant(_ context.Context, competitionID, userID string) (*models.CompetitionParticipant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.participantIndex(competitionID, userID)
	if i < 0 {
		return nil, competition.ErrParticipantNotFound
	}
	p := m.participants[i]
	return &p, nil
}

// UpdateParticipantStatus applies a moderation decision
func (m *MemoryStore) UpdateParticipantStatus(_ context.Context, competitionID, userID string, status competition.RegistrationStatus, justification string) (*models.CompetitionParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.participantIndex(competitionID, userID)
	if i < 0 {
		return nil, competition.ErrParticipantNotFound
	}
	m.participants[i].RegistrationStatus = status
	m.participants[i].RegistrationJustification = justification
	m.participants[i].UpdatedAt = time.Now()
	p := m.participants[i]
	return &p, nil
}

// ListParticipants retrieves the registrations matching q in registration order
func (m *MemoryStore) ListParticipants(_ context.Context, q ParticipantQuery) ([]models.CompetitionParticipant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.CompetitionParticipant
	for _, p := range m.participants {
		if p.CompetitionID != q.CompetitionID {
			continue
		}
		if q.Status != "" && p.RegistrationStatus != q.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// CreateSponsor inserts a new sponsor
func (m *MemoryStore) CreateSponsor(_ context.Context, s *models.Sponsor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sponsors[s.ID] = *s
	return nil
}

// CreatePrize inserts a new prize. A set SponsorID must reference an existing sponsor.
func (m *MemoryStore) CreatePrize(_ context.Context, p *models.Prize) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.SponsorID != nil {
		if _, ok := m.sponsors[*p.SponsorID]; !ok {
			return competition.ErrSponsorNotFound
		}
	}
	p.CreatedAt = time.Now()
	stored := *p
	stored.Sponsor = nil
	m.prizes[p.ID] = stored
	return nil
}

// GetPrize retrieves a prize by id
func (m *MemoryStore) GetPrize(_ context.Context, id string) (*models.Prize, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prizes[id]
	if !ok {
		return nil, competition.ErrPrizeNotFound
	}
	if p.SponsorID != nil {
		if s, ok := m.sponsors[*p.SponsorID]; ok {
			p.Sponsor = &s
		}
	}
	return &p, nil
}

// AttachPrize binds a prize to a competition
func (m *MemoryStore) AttachPrize(_ context.Context, cp *models.CompetitionPrize) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.competitions[cp.CompetitionID]; !ok {
		return competition.ErrCompetitionNotFound
	}
	if _, ok := m.prizes[cp.PrizeID]; !ok {
		return competition.ErrPrizeNotFound
	}
	stored := *cp
	stored.Prize = models.Prize{}
	m.rules = append(m.rules, stored)
	return nil
}

// ListCompetitionPrizes retrieves the prize rules of a competition with
// their prizes. Rules for every rank come first.
func (m *MemoryStore) ListCompetitionPrizes(_ context.Context, competitionID string) ([]models.CompetitionPrize, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.CompetitionPrize
	for _, r := range m.rules {
		if r.CompetitionID != competitionID {
			continue
		}
		r.Prize = m.prizes[r.PrizeID]
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b models.CompetitionPrize) int {
		switch {
		case a.UserRank == nil && b.UserRank == nil:
			return 0
		case a.UserRank == nil:
			return -1
		case b.UserRank == nil:
			return 1
		}
		return cmp.Compare(*a.UserRank, *b.UserRank)
	})
	return out, nil
}

func (m *MemoryStore) freezeLock(competitionID string) *sync.Mutex {
	m.freezeMu.Lock()
	defer m.freezeMu.Unlock()

	l, ok := m.freezing[competitionID]
	if !ok {
		l = &sync.Mutex{}
		m.freezing[competitionID] = l
	}
	return l
}

// FreezeLeaderboard writes the closing leaderboard of a competition exactly
// once. Callers for the same competition are serialized, and compute runs
// without holding the table lock so it can read segments.
func (m *MemoryStore) FreezeLeaderboard(ctx context.Context, competitionID string, closedAt time.Time, compute ComputeFunc) (*models.Competition, bool, error) {
	l := m.freezeLock(competitionID)
	l.Lock()
	defer l.Unlock()

	c, err := m.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, false, err
	}
	if c.IsFrozen() {
		return c, false, nil
	}

	entries, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	raw, err := models.EncodeSnapshot(entries)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.competitions[c.ID]
	stored.ClosingLeaderboard = raw
	stored.ClosedAt = &closedAt
	stored.UpdatedAt = time.Now()
	m.competitions[c.ID] = stored
	return &stored, true, nil
}

// RecordWinners inserts winners, ignoring participants that already have a
// winner row for their competition
func (m *MemoryStore) RecordWinners(_ context.Context, winners []models.Winner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range winners {
		exists := slices.ContainsFunc(m.winners, func(e models.Winner) bool {
			return e.CompetitionID == w.CompetitionID && e.ParticipantID == w.ParticipantID
		})
		if exists {
			continue
		}
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		w.CreatedAt = time.Now()
		m.winners = append(m.winners, w)
	}
	return nil
}

// ListWinners retrieves the winners of a competition ordered by rank
func (m *MemoryStore) ListWinners(_ context.Context, competitionID string) ([]models.Winner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Winner
	for _, w := range m.winners {
		if w.CompetitionID == competitionID {
			out = append(out, w)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Winner) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return cmp.Compare(a.ParticipantID, b.ParticipantID)
	})
	return out, nil
}

// UpsertProfile creates or replaces a profile
func (m *MemoryStore) UpsertProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = *p
	return nil
}

// AgeGroup returns the age group of a user
func (m *MemoryStore) AgeGroup(_ context.Context, userID string) (competition.AgeGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return "", &competition.UserNotFoundError{UserID: userID}
	}
	return p.AgeGroup, nil
}

// CreateSegment inserts a segment with its emissions. Geom must be a WKT or
// EWKT LINESTRING.
func (m *MemoryStore) CreateSegment(_ context.Context, s *models.Segment) error {
	track, err := geo.ParseTrack(s.Geom)
	if err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	stored := *s
	if s.Emission != nil {
		e := *s.Emission
		e.SegmentID = s.ID
		stored.Emission = &e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = append(m.segments, memorySegment{segment: stored, track: track})
	return nil
}

// DeleteSegments removes every segment of a user
func (m *MemoryStore) DeleteSegments(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = slices.DeleteFunc(m.segments, func(s memorySegment) bool {
		return s.segment.UserID == userID
	})
}

// SumSaved sums one saved-emission metric over a user's segments inside the
// window and, when set, intersecting the region
func (m *MemoryStore) SumSaved(_ context.Context, q scoring.SegmentQuery) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0.0
	for _, s := range m.segments {
		seg := s.segment
		if seg.UserID != q.UserID || seg.Emission == nil {
			continue
		}
		if seg.StartDate.Before(q.From) || seg.EndDate.After(q.To) {
			continue
		}
		if len(q.Region) > 0 && !geo.Intersects(s.track, q.Region) {
			continue
		}
		total += seg.Emission.Saved(q.Metric)
	}
	return total, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
