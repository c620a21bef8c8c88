package models

import (
	"time"

	"prizeboard/internal/competition"
)

// Sponsor funds prizes or competitions
type Sponsor struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
	URL  string `json:"url,omitempty"`
}

// TableName specifies the table name for GORM
func (Sponsor) TableName() string {
	return "sponsors"
}

// Prize is something a competition winner can be awarded
type Prize struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;index" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	URL         string    `json:"url,omitempty"`
	SponsorID   *string   `gorm:"index" json:"sponsor_id,omitempty"`
	Sponsor     *Sponsor  `gorm:"foreignKey:SponsorID" json:"sponsor,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Prize) TableName() string {
	return "prizes"
}

// CompetitionPrize binds a prize to a competition, optionally for one rank only
type CompetitionPrize struct {
	ID            string `gorm:"primaryKey" json:"id"`
	CompetitionID string `gorm:"not null;index" json:"competition_id"`
	PrizeID       string `gorm:"not null;index" json:"prize_id"`
	Prize         Prize  `gorm:"foreignKey:PrizeID" json:"prize"`

	// Nil awards every winner within the competition's threshold
	UserRank *int `json:"user_rank,omitempty"`

	PrizeAttributionTemplate string `gorm:"type:text" json:"prize_attribution_template"`
}

// TableName specifies the table name for GORM
func (CompetitionPrize) TableName() string {
	return "competition_prizes"
}

// Rule converts the row into a prize rule. Prize must be preloaded.
func (cp *CompetitionPrize) Rule() competition.PrizeRule {
	return competition.PrizeRule{
		ID:          cp.ID,
		PrizeID:     cp.PrizeID,
		PrizeName:   cp.Prize.Name,
		UserRank:    cp.UserRank,
		Attribution: competition.PrizeTemplate(cp.PrizeAttributionTemplate),
	}
}
