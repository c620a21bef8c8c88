package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prizeboard/internal/competition"
	"prizeboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ComputeFunc produces the closing leaderboard entries of a competition
type ComputeFunc func(ctx context.Context) ([]competition.ScoreEntry, error)

// PostgresRepository handles all PostgreSQL operations
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a new Postgres repository
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// CreateCompetition inserts a new competition
func (r *PostgresRepository) CreateCompetition(ctx context.Context, c *models.Competition) error {
	return r.db.WithContext(ctx).Omit("Prizes").Create(c).Error
}

// GetCompetition retrieves a competition by id or slug
func (r *PostgresRepository) GetCompetition(ctx context.Context, ref string) (*models.Competition, error) {
	var c models.Competition
	err := r.db.WithContext(ctx).Where("id = ? OR slug = ?", ref, ref).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, competition.ErrCompetitionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCompetitions retrieves the competitions matching q, ordered like the
// original catalogue: by name then start date
func (r *PostgresRepository) ListCompetitions(ctx context.Context, q CompetitionQuery) ([]models.Competition, error) {
	tx := r.db.WithContext(ctx).Model(&models.Competition{})

	// Mirrors competition.StateAt
	switch q.State {
	case competition.StateUpcoming:
		tx = tx.Where("start_date >= ?", q.At)
	case competition.StateOpen:
		tx = tx.Where("start_date < ? AND end_date >= ?", q.At, q.At)
	case competition.StateClosed:
		tx = tx.Where("end_date < ?", q.At)
	}
	if q.OnlyUnfrozen {
		tx = tx.Where("closing_leaderboard IS NULL")
	}
	if q.AwaitingWinners {
		tx = tx.Where("closing_leaderboard IS NOT NULL AND closing_leaderboard <> '[]'::jsonb").
			Where("NOT EXISTS (SELECT 1 FROM winners w WHERE w.competition_id = competitions.id)")
	}

	var competitions []models.Competition
	err := tx.Order("name ASC").Order("start_date ASC").Find(&competitions).Error
	return competitions, err
}

// RegisterParticipant inserts a registration unless the user already has one
// for the competition, and returns the stored row
func (r *PostgresRepository) RegisterParticipant(ctx context.Context, p *models.CompetitionParticipant) (*models.CompetitionParticipant, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "competition_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(p).Error
	if err != nil {
		return nil, err
	}
	return r.GetParticipant(ctx, p.CompetitionID, p.UserID)
}

// GetParticipant retrieves the registration of a user for a competition
func (r *PostgresRepository) GetParticipant(ctx context.Context, competitionID, userID string) (*models.CompetitionParticipant, error) {
	var p models.CompetitionParticipant
	err := r.db.WithContext(ctx).
		Where("competition_id = ? AND user_id = ?", competitionID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, competition.ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateParticipantStatus applies a moderation decision
func (r *PostgresRepository) UpdateParticipantStatus(ctx context.Context, competitionID, userID string, status competition.RegistrationStatus, justification string) (*models.CompetitionParticipant, error) {
	res := r.db.WithContext(ctx).Model(&models.CompetitionParticipant{}).
		Where("competition_id = ? AND user_id = ?", competitionID, userID).
		Updates(map[string]interface{}{
			"registration_status":        status,
			"registration_justification": justification,
			"updated_at":                 time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, competition.ErrParticipantNotFound
	}
	return r.GetParticipant(ctx, competitionID, userID)
}

// ListParticipants retrieves the registrations matching q
func (r *PostgresRepository) ListParticipants(ctx context.Context, q ParticipantQuery) ([]models.CompetitionParticipant, error) {
	tx := r.db.WithContext(ctx).Where("competition_id = ?", q.CompetitionID)
	if q.Status != "" {
		tx = tx.Where("registration_status = ?", q.Status)
	}
	var participants []models.CompetitionParticipant
	err := tx.Order("created_at ASC").Order("id ASC").Find(&participants).Error
	return participants, err
}

// CreatePrize inserts a new prize. A set SponsorID must reference an existing sponsor.
func (r *PostgresRepository) CreatePrize(ctx context.Context, p *models.Prize) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.SponsorID != nil {
			var n int64
			if err := tx.Model(&models.Sponsor{}).Where("id = ?", *p.SponsorID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return competition.ErrSponsorNotFound
			}
		}
		return tx.Omit("Sponsor").Create(p).Error
	})
}

// CreateSponsor inserts a new sponsor
func (r *PostgresRepository) CreateSponsor(ctx context.Context, s *models.Sponsor) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetPrize retrieves a prize by id
func (r *PostgresRepository) GetPrize(ctx context.Context, id string) (*models.Prize, error) {
	var p models.Prize
	err := r.db.WithContext(ctx).Preload("Sponsor").First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, competition.ErrPrizeNotFound
		}
		return nil, err
	}
	return &p, nil
}

// AttachPrize binds a prize to a competition
func (r *PostgresRepository) AttachPrize(ctx context.Context, cp *models.CompetitionPrize) error {
	return r.db.WithContext(ctx).Omit("Prize").Create(cp).Error
}

// ListCompetitionPrizes retrieves the prize rules of a competition with their prizes
func (r *PostgresRepository) ListCompetitionPrizes(ctx context.Context, competitionID string) ([]models.CompetitionPrize, error) {
	var prizes []models.CompetitionPrize
	err := r.db.WithContext(ctx).Preload("Prize").
		Where("competition_id = ?", competitionID).
		Order("user_rank ASC NULLS FIRST").Order("id ASC").
		Find(&prizes).Error
	return prizes, err
}

// FreezeLeaderboard writes the closing leaderboard of a competition exactly
// once. The competition row is locked for the duration of compute, so
// concurrent callers wait and then observe the stored snapshot instead of
// computing it again. The boolean reports whether this call wrote it.
func (r *PostgresRepository) FreezeLeaderboard(ctx context.Context, competitionID string, closedAt time.Time, compute ComputeFunc) (*models.Competition, bool, error) {
	var (
		result  models.Competition
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&result, "id = ?", competitionID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return competition.ErrCompetitionNotFound
			}
			return err
		}
		if result.IsFrozen() {
			return nil
		}

		entries, err := compute(ctx)
		if err != nil {
			return err
		}
		raw, err := models.EncodeSnapshot(entries)
		if err != nil {
			return err
		}

		res := tx.Model(&models.Competition{}).
			Where("id = ? AND closing_leaderboard IS NULL", competitionID).
			Updates(map[string]interface{}{
				"closing_leaderboard": raw,
				"closed_at":           closedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("closing leaderboard of %s was written concurrently", competitionID)
		}

		result.ClosingLeaderboard = raw
		result.ClosedAt = &closedAt
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &result, created, nil
}

// RecordWinners inserts winners, ignoring participants that already have a
// winner row for their competition
func (r *PostgresRepository) RecordWinners(ctx context.Context, winners []models.Winner) error {
	if len(winners) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "competition_id"}, {Name: "participant_id"}},
		DoNothing: true,
	}).Create(&winners).Error
}

// ListWinners retrieves the winners of a competition ordered by rank
func (r *PostgresRepository) ListWinners(ctx context.Context, competitionID string) ([]models.Winner, error) {
	var winners []models.Winner
	err := r.db.WithContext(ctx).
		Where("competition_id = ?", competitionID).
		Order("rank ASC").Order("participant_id ASC").
		Find(&winners).Error
	return winners, err
}

// Ping checks if database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations. The segments table needs PostGIS.
func (r *PostgresRepository) AutoMigrate() error {
	if err := r.db.Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
		return fmt.Errorf("enable postgis: %w", err)
	}
	return r.db.AutoMigrate(
		&models.Competition{},
		&models.CompetitionParticipant{},
		&models.Sponsor{},
		&models.Prize{},
		&models.CompetitionPrize{},
		&models.Winner{},
		&models.Profile{},
		&models.Segment{},
		&models.SegmentEmission{},
	)
}
