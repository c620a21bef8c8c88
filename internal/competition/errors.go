package competition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a competition cannot be built from its configuration
	ErrInvalidConfiguration = errors.New("invalid competition configuration")
	// ErrCompetitionNotFound is returned when a competition id cannot be resolved
	ErrCompetitionNotFound = errors.New("competition not found")
	// ErrCompetitionNotClosed is returned by operations that need a closed competition
	ErrCompetitionNotClosed = errors.New("competition is not closed")
	// ErrParticipantNotFound is returned when a user is not registered for a competition
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrPrizeNotFound is returned when a prize id cannot be resolved
	ErrPrizeNotFound = errors.New("prize not found")
	// ErrSponsorNotFound is returned when a prize references an unknown sponsor
	ErrSponsorNotFound = errors.New("sponsor not found")
)

// UnsupportedCriterionError is raised when a competition is configured with a
// criterion the scorer cannot compute. It always aborts the operation.
type UnsupportedCriterionError struct {
	Criterion Criterion
}

func (e *UnsupportedCriterionError) Error() string {
	return fmt.Sprintf("unsupported criterion %q", string(e.Criterion))
}

// UserNotFoundError is raised when a user's profile cannot be resolved
type UserNotFoundError struct {
	UserID string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.UserID)
}

// IsUserNotFound reports whether err wraps a UserNotFoundError
func IsUserNotFound(err error) bool {
	var target *UserNotFoundError
	return errors.As(err, &target)
}

// IsUnsupportedCriterion reports whether err wraps an UnsupportedCriterionError
func IsUnsupportedCriterion(err error) bool {
	var target *UnsupportedCriterionError
	return errors.As(err, &target)
}
