package models

import "time"

// RemovalHistory archives a registration that was hard-deleted. Entries are never mutated.
type RemovalHistory struct {
	ID             string       `json:"id"`
	RegistrationID string       `json:"registration_id"`
	EventID        string       `json:"event_id"`
	UserID         string       `json:"user_id"`
	Snapshot       Registration `json:"snapshot"`
	RemovedBy      string       `json:"removed_by"`
	Reason         string       `json:"reason"`
	RemovedAt      time.Time    `json:"removed_at"`
}
