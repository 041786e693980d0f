package models

import "time"

type RegistrationType string

const (
	TypeParticipant RegistrationType = "participant"
	TypeVolunteer   RegistrationType = "volunteer"
)

func (t RegistrationType) Valid() bool {
	return t == TypeParticipant || t == TypeVolunteer
}

type Status string

const (
	StatusRegistered Status = "registered"
	StatusAttended   Status = "attended"
	StatusAbsent     Status = "absent"
	StatusCancelled  Status = "cancelled"
	StatusWaitlist   Status = "waitlist"
	StatusRejected   Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRegistered, StatusAttended, StatusAbsent, StatusCancelled, StatusWaitlist, StatusRejected:
		return true
	}
	return false
}

// HoldsSpot reports whether the status occupies a confirmed place at the event.
func (s Status) HoldsSpot() bool {
	return s == StatusRegistered || s == StatusAttended || s == StatusAbsent
}

type Registration struct {
	ID                  string           `json:"id"`
	EventID             string           `json:"event_id"`
	UserID              string           `json:"user_id"`
	UserName            string           `json:"user_name"`
	Type                RegistrationType `json:"registration_type"`
	Status              Status           `json:"status"`
	IsCaregiver         bool             `json:"is_caregiver"`
	ParticipantName     string           `json:"participant_name"`
	Email               string           `json:"email,omitempty"`
	Phone               string           `json:"phone,omitempty"`
	EmergencyContact    string           `json:"emergency_contact,omitempty"`
	AccessibilityNeeds  string           `json:"accessibility_needs,omitempty"`
	DietaryRequirements string           `json:"dietary_requirements,omitempty"`
	Notes               string           `json:"notes,omitempty"`
	WaitlistPosition    *int             `json:"waitlist_position,omitempty"`
	PromotedAt          *time.Time       `json:"promoted_at,omitempty"`
	RegisteredAt        time.Time        `json:"registered_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// DisplayName is the name of the person attending, which differs from the account holder
// for caregiver registrations.
func (r Registration) DisplayName() string {
	if r.ParticipantName != "" {
		return r.ParticipantName
	}
	return r.UserName
}

// OnActiveWaitlist reports whether the entry has been approved onto the waitlist.
func (r Registration) OnActiveWaitlist() bool {
	return r.Status == StatusWaitlist && r.WaitlistPosition != nil
}
