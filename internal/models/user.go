package models

import "time"

type Role string

const (
	RoleParticipant Role = "participant"
	RoleVolunteer   Role = "volunteer"
	RoleStaff       Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleVolunteer, RoleStaff:
		return true
	}
	return false
}

type UserStatus string

const (
	UserPending    UserStatus = "pending"
	UserActive     UserStatus = "active"
	UserRestricted UserStatus = "restricted"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserPending, UserActive, UserRestricted:
		return true
	}
	return false
}

type MembershipType string

const (
	MembershipAdhoc           MembershipType = "adhoc"
	MembershipOnceWeekly      MembershipType = "once_weekly"
	MembershipTwiceWeekly     MembershipType = "twice_weekly"
	MembershipThreePlusWeekly MembershipType = "three_plus_weekly"
)

func (m MembershipType) Valid() bool {
	switch m {
	case MembershipAdhoc, MembershipOnceWeekly, MembershipTwiceWeekly, MembershipThreePlusWeekly:
		return true
	}
	return false
}

// User is keyed by the identity provider's stable id (the Discord user id).
type User struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	Role           Role           `json:"role"`
	Status         UserStatus     `json:"status"`
	MembershipType MembershipType `json:"membership_type"`
	TelegramChatID int64          `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (u User) IsStaff() bool { return u.Role == RoleStaff }

// CanRegister reports whether the member may hold registrations. Pending and restricted
// members may not, whoever books for them.
func (u User) CanRegister() bool { return u.IsStaff() || u.Status == UserActive }
