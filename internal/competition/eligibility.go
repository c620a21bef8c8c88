package competition

// Participant is a user registered for a competition
type Participant struct {
	ID            string             `json:"id"`
	CompetitionID string             `json:"competition_id"`
	UserID        string             `json:"user_id"`
	Status        RegistrationStatus `json:"registration_status"`
	Justification string             `json:"registration_justification,omitempty"`
}

// IsApproved reports whether p may be scored
func IsApproved(p Participant) bool {
	return p.Status == StatusApproved
}

// IsPending reports whether p still awaits moderation
func IsPending(p Participant) bool {
	return p.Status == StatusPendingModeration
}

// Eligible returns the approved participants of a roster, preserving order.
// Age group and region filters are applied later by the scorer.
func Eligible(roster []Participant) []Participant {
	eligible := make([]Participant, 0, len(roster))
	for _, p := range roster {
		if IsApproved(p) {
			eligible = append(eligible, p)
		}
	}
	return eligible
}
