package models

import (
	"time"

	"prizeboard/internal/competition"
)

// CreateCompetitionRequest represents the request payload for creating a competition
type CreateCompetitionRequest struct {
	Name            string                  `json:"name" validate:"required,min=3,max=100"`
	Description     string                  `json:"description"`
	Criteria        []competition.Criterion `json:"criteria" validate:"required,min=1,unique,dive,criterion"`
	AgeGroups       []competition.AgeGroup  `json:"age_groups" validate:"unique,dive,agegroup"`
	WinnerThreshold int                     `json:"winner_threshold" validate:"required,min=1"`
	StartDate       time.Time               `json:"start_date" validate:"required"`
	EndDate         time.Time               `json:"end_date" validate:"required,gtfield=StartDate"`
	RegionWKT       string                  `json:"region_wkt"`
}

// RegisterParticipantRequest represents the request payload for joining a competition
type RegisterParticipantRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

// ModerateParticipantRequest represents the request payload for moderating a registration
type ModerateParticipantRequest struct {
	Status        competition.RegistrationStatus `json:"registration_status" validate:"required,registration"`
	Justification string                         `json:"registration_justification" validate:"max=255"`
}

// CreateSponsorRequest represents the request payload for registering a sponsor
type CreateSponsorRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	URL  string `json:"url" validate:"omitempty,url"`
}

// CreatePrizeRequest represents the request payload for adding a prize to the catalogue
type CreatePrizeRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description"`
	URL         string  `json:"url" validate:"omitempty,url"`
	SponsorID   *string `json:"sponsor_id" validate:"omitempty,uuid"`
}

// AttachPrizeRequest represents the request payload for binding a prize to a competition
type AttachPrizeRequest struct {
	PrizeID                  string `json:"prize_id" validate:"required,uuid"`
	UserRank                 *int   `json:"user_rank" validate:"omitempty,min=1"`
	PrizeAttributionTemplate string `json:"prize_attribution_template"`
}

// LeaderboardEntry represents a single entry in the leaderboard
type LeaderboardEntry struct {
	Rank           int                               `json:"rank"`
	UserID         string                            `json:"user_id"`
	TotalScore     float64                           `json:"total_score"`
	CriteriaPoints map[competition.Criterion]float64 `json:"criteria_points"`
}

// LeaderboardResponse represents the paginated leaderboard response
type LeaderboardResponse struct {
	CompetitionID string             `json:"competition_id"`
	State         competition.State  `json:"state"`
	Frozen        bool               `json:"frozen"`
	FrozenAt      *time.Time         `json:"frozen_at,omitempty"`
	Data          []LeaderboardEntry `json:"data"`
	Offset        int                `json:"offset"`
	Limit         int                `json:"limit"`
	Total         int                `json:"total"`
}

// ScoreResponse represents a participant's per-criterion score
type ScoreResponse struct {
	CompetitionID  string                            `json:"competition_id"`
	UserID         string                            `json:"user_id"`
	CriteriaPoints map[competition.Criterion]float64 `json:"criteria_points"`
	TotalScore     float64                           `json:"total_score"`
}

// RankResponse represents a user's placement in a closed competition
type RankResponse struct {
	CompetitionID string  `json:"competition_id"`
	UserID        string  `json:"user_id"`
	Rank          int     `json:"rank"`
	TotalScore    float64 `json:"total_score"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
