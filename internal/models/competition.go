package models

import (
	"encoding/json"
	"fmt"
	"time"

	"prizeboard/internal/competition"
	"prizeboard/internal/geo"

	"gorm.io/datatypes"
)

// Competition stores a competition's configuration and, once closed, its
// frozen closing leaderboard
type Competition struct {
	ID              string                                     `gorm:"primaryKey" json:"id"`
	Slug            string                                     `gorm:"uniqueIndex;not null" json:"slug"`
	Name            string                                     `gorm:"not null" json:"name"`
	Description     string                                     `gorm:"type:text" json:"description"`
	Criteria        datatypes.JSONSlice[competition.Criterion] `gorm:"not null" json:"criteria"`
	AgeGroups       datatypes.JSONSlice[competition.AgeGroup]  `json:"age_groups"`
	WinnerThreshold int                                        `gorm:"not null;default:1" json:"winner_threshold"`
	StartDate       time.Time                                  `gorm:"not null;index" json:"start_date"`
	EndDate         time.Time                                  `gorm:"not null;index" json:"end_date"`

	// RegionWKT holds the union of the competition's regions of interest
	RegionWKT string `gorm:"type:text" json:"region_wkt,omitempty"`

	// Written once when the competition is closed; never updated afterwards
	ClosingLeaderboard datatypes.JSON `json:"-"`
	ClosedAt           *time.Time     `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Prizes []CompetitionPrize `gorm:"foreignKey:CompetitionID" json:"prizes,omitempty"`
}

// TableName specifies the table name for GORM
func (Competition) TableName() string {
	return "competitions"
}

// Info builds the scoring configuration of the competition
func (c *Competition) Info() (competition.CompetitionInfo, error) {
	region, err := geo.ParseRegion(c.RegionWKT)
	if err != nil {
		return competition.CompetitionInfo{}, fmt.Errorf("%w: %v", competition.ErrInvalidConfiguration, err)
	}
	return competition.NewInfo(competition.CompetitionInfo{
		ID:              c.ID,
		Name:            c.Name,
		Criteria:        c.Criteria,
		WinnerThreshold: c.WinnerThreshold,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		AgeGroups:       c.AgeGroups,
		Region:          region,
	})
}

// State returns the lifecycle state of the competition at now
func (c *Competition) State(now time.Time) competition.State {
	return competition.StateAt(c.StartDate, c.EndDate, now)
}

// IsFrozen reports whether the closing leaderboard has been written
func (c *Competition) IsFrozen() bool {
	return len(c.ClosingLeaderboard) > 0
}

// Snapshot decodes the closing leaderboard
func (c *Competition) Snapshot() (competition.Leaderboard, error) {
	lb := competition.Leaderboard{
		CompetitionID: c.ID,
		Frozen:        true,
		FrozenAt:      c.ClosedAt,
		Entries:       []competition.ScoreEntry{},
	}
	if err := json.Unmarshal(c.ClosingLeaderboard, &lb.Entries); err != nil {
		return competition.Leaderboard{}, fmt.Errorf("decode closing leaderboard of %s: %w", c.ID, err)
	}
	return lb, nil
}

// EncodeSnapshot renders leaderboard entries in the persisted closing format
func EncodeSnapshot(entries []competition.ScoreEntry) (datatypes.JSON, error) {
	if entries == nil {
		entries = []competition.ScoreEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode closing leaderboard: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// CompetitionParticipant is a user's registration for a competition
type CompetitionParticipant struct {
	ID                        string                         `gorm:"primaryKey" json:"id"`
	CompetitionID             string                         `gorm:"not null;uniqueIndex:idx_participant_competition_user" json:"competition_id"`
	UserID                    string                         `gorm:"not null;uniqueIndex:idx_participant_competition_user" json:"user_id"`
	RegistrationStatus        competition.RegistrationStatus `gorm:"type:varchar(32);not null;index" json:"registration_status"`
	RegistrationJustification string                         `gorm:"size:255" json:"registration_justification"`
	CreatedAt                 time.Time                      `json:"created_at"`
	UpdatedAt                 time.Time                      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CompetitionParticipant) TableName() string {
	return "competition_participants"
}

// Participant converts the row into its domain form
func (p *CompetitionParticipant) Participant() competition.Participant {
	return competition.Participant{
		ID:            p.ID,
		CompetitionID: p.CompetitionID,
		UserID:        p.UserID,
		Status:        p.RegistrationStatus,
		Justification: p.RegistrationJustification,
	}
}

// Winner records a participant's final placement. Unique per participant and competition.
type Winner struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	CompetitionID string    `gorm:"not null;uniqueIndex:idx_winner_competition_participant" json:"competition_id"`
	ParticipantID string    `gorm:"not null;uniqueIndex:idx_winner_competition_participant" json:"participant_id"`
	UserID        string    `gorm:"not null;index" json:"user_id"`
	Rank          int       `gorm:"not null" json:"rank"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Winner) TableName() string {
	return "winners"
}

// Winner converts the row into its domain form
func (w *Winner) Winner() competition.Winner {
	return competition.Winner{
		CompetitionID: w.CompetitionID,
		ParticipantID: w.ParticipantID,
		UserID:        w.UserID,
		Rank:          w.Rank,
	}
}
