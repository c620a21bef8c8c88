package models

import (
	"time"

	"prizeboard/internal/competition"
)

// Profile is the slice of a user profile the scorer reads. Owned by the
// profile service; this repository never writes it outside of seeding.
type Profile struct {
	UserID   string               `gorm:"primaryKey" json:"user_id"`
	Username string               `gorm:"not null" json:"username"`
	AgeGroup competition.AgeGroup `gorm:"type:varchar(32)" json:"age_group"`
}

// TableName specifies the table name for GORM
func (Profile) TableName() string {
	return "profiles"
}

// Segment is a portion of a track travelled with a single vehicle type.
// Produced by the ingestion pipeline.
type Segment struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"not null;index" json:"user_id"`
	VehicleType string    `gorm:"size:20;not null" json:"vehicle_type"`
	Geom        string    `gorm:"type:geometry(LineString,4326);not null" json:"-"`
	StartDate   time.Time `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time `gorm:"not null" json:"end_date"`

	Emission *SegmentEmission `gorm:"foreignKey:SegmentID" json:"emission,omitempty"`
}

// TableName specifies the table name for GORM
func (Segment) TableName() string {
	return "segments"
}

// SegmentEmission holds the emissions a segment produced and prevented.
// SO2, NOx, CO and PM10 are in mg, CO2 in g.
type SegmentEmission struct {
	SegmentID string   `gorm:"primaryKey" json:"segment_id"`
	SO2       *float64 `gorm:"column:so2" json:"so2,omitempty"`
	SO2Saved  *float64 `gorm:"column:so2_saved" json:"so2_saved,omitempty"`
	NOx       *float64 `gorm:"column:nox" json:"nox,omitempty"`
	NOxSaved  *float64 `gorm:"column:nox_saved" json:"nox_saved,omitempty"`
	CO2       *float64 `gorm:"column:co2" json:"co2,omitempty"`
	CO2Saved  *float64 `gorm:"column:co2_saved" json:"co2_saved,omitempty"`
	CO        *float64 `gorm:"column:co" json:"co,omitempty"`
	COSaved   *float64 `gorm:"column:co_saved" json:"co_saved,omitempty"`
	PM10      *float64 `gorm:"column:pm10" json:"pm10,omitempty"`
	PM10Saved *float64 `gorm:"column:pm10_saved" json:"pm10_saved,omitempty"`
}

// TableName specifies the table name for GORM
func (SegmentEmission) TableName() string {
	return "segment_emissions"
}

// Saved returns the prevented quantity for a metric column, treating NULL as 0
func (e *SegmentEmission) Saved(metric competition.Metric) float64 {
	var v *float64
	switch metric {
	case competition.MetricSO2Saved:
		v = e.SO2Saved
	case competition.MetricNOxSaved:
		v = e.NOxSaved
	case competition.MetricCO2Saved:
		v = e.CO2Saved
	case competition.MetricCOSaved:
		v = e.COSaved
	case competition.MetricPM10Saved:
		v = e.PM10Saved
	}
	if v == nil {
		return 0
	}
	return *v
}
