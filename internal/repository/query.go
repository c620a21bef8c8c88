package repository

import (
	"time"

	"prizeboard/internal/competition"
)

// CompetitionQuery filters competitions by lifecycle state at an instant.
// A zero State matches every competition.
type CompetitionQuery struct {
	State competition.State
	At    time.Time
	// OnlyUnfrozen keeps competitions whose closing leaderboard is not written yet
	OnlyUnfrozen bool
	// AwaitingWinners keeps frozen competitions with a non-empty closing
	// leaderboard and no winner rows
	AwaitingWinners bool
}

// ParticipantQuery filters the participants of a competition. A zero Status
// matches every registration.
type ParticipantQuery struct {
	CompetitionID string
	Status        competition.RegistrationStatus
}
