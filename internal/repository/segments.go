package repository

import (
	"context"
	"errors"
	"fmt"

	"prizeboard/internal/competition"
	"prizeboard/internal/geo"
	"prizeboard/internal/models"
	"prizeboard/internal/scoring"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// savedColumns whitelists the segment_emissions columns a query may sum
var savedColumns = map[competition.Metric]string{
	competition.MetricSO2Saved:  "so2_saved",
	competition.MetricNOxSaved:  "nox_saved",
	competition.MetricCO2Saved:  "co2_saved",
	competition.MetricCOSaved:   "co_saved",
	competition.MetricPM10Saved: "pm10_saved",
}

// SegmentRepository reads materialized segment metrics from PostGIS
type SegmentRepository struct {
	db *gorm.DB
}

// NewSegmentRepository creates a new segment repository
func NewSegmentRepository(db *gorm.DB) *SegmentRepository {
	return &SegmentRepository{
		db: db,
	}
}

// SumSaved sums one saved-emission column over a user's segments inside the
// window and, when set, intersecting the region
func (r *SegmentRepository) SumSaved(ctx context.Context, q scoring.SegmentQuery) (float64, error) {
	column, ok := savedColumns[q.Metric]
	if !ok {
		return 0, fmt.Errorf("no column for metric %q", q.Metric)
	}

	tx := r.db.WithContext(ctx).
		Table("segments AS s").
		Joins("JOIN segment_emissions AS e ON e.segment_id = s.id").
		Select(fmt.Sprintf("COALESCE(SUM(e.%s), 0)", column)).
		Where("s.user_id = ?", q.UserID).
		Where("s.start_date >= ? AND s.end_date <= ?", q.From, q.To)
	if len(q.Region) > 0 {
		tx = tx.Where("ST_Intersects(s.geom, ST_GeomFromText(?, 4326))", geo.MarshalRegion(q.Region))
	}

	var total float64
	if err := tx.Row().Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// BulkInsertSegments inserts segments with their emissions in batches
func (r *SegmentRepository) BulkInsertSegments(ctx context.Context, segments []models.Segment, batchSize int) error {
	return r.db.WithContext(ctx).CreateInBatches(segments, batchSize).Error
}

// ProfileRepository resolves profiles from the shared profiles table
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{
		db: db,
	}
}

// AgeGroup returns the age group of a user
func (r *ProfileRepository) AgeGroup(ctx context.Context, userID string) (competition.AgeGroup, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).Select("user_id", "age_group").First(&p, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &competition.UserNotFoundError{UserID: userID}
		}
		return "", err
	}
	return p.AgeGroup, nil
}

// BulkUpsertProfiles creates or replaces profiles in batches
func (r *ProfileRepository) BulkUpsertProfiles(ctx context.Context, profiles []models.Profile, batchSize int) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).CreateInBatches(profiles, batchSize).Error
}
