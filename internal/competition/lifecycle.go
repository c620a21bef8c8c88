package competition

import "time"

// State is the lifecycle state of a competition at a given instant
type State string

const (
	StateUpcoming State = "upcoming"
	StateOpen     State = "open"
	StateClosed   State = "closed"
)

// Known reports whether s is a valid lifecycle state
func (s State) Known() bool {
	return s == StateUpcoming || s == StateOpen || s == StateClosed
}

// IsOpen reports whether a competition running over [start, end] accepts
// scoring at now. The window is open on the left: a competition is not open
// exactly at its start instant, but still is at its end instant.
func IsOpen(start, end, now time.Time) bool {
	return now.After(start) && !now.After(end)
}

// StateAt returns the lifecycle state of a competition at now
func StateAt(start, end, now time.Time) State {
	switch {
	case now.After(end):
		return StateClosed
	case IsOpen(start, end, now):
		return StateOpen
	default:
		return StateUpcoming
	}
}

// State returns the lifecycle state of the competition at now
func (c CompetitionInfo) State(now time.Time) State {
	return StateAt(c.StartDate, c.EndDate, now)
}
