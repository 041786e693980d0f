package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// ParseDate parses a civil date. The result is midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// CivilDate truncates t to its calendar date in UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Event struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Date                time.Time  `json:"date"`
	StartTime           TimeOfDay  `json:"start_time"`
	EndTime             *TimeOfDay `json:"end_time,omitempty"`
	Location            string     `json:"location"`
	Category            string     `json:"category"`
	Capacity            *int       `json:"capacity,omitempty"`
	CurrentSignups      int        `json:"current_signups"`
	VolunteersNeeded    *int       `json:"volunteers_needed,omitempty"`
	CurrentVolunteers   int        `json:"current_volunteers"`
	CurrentWaitlist     int        `json:"current_waitlist"`
	IsRecurring         bool       `json:"is_recurring"`
	RecurringGroupID    string     `json:"recurring_group_id,omitempty"`
	ConfirmationMessage string     `json:"confirmation_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// End returns the end of the event window; an event without an end time ends when it starts.
func (e Event) End() TimeOfDay {
	if e.EndTime == nil {
		return e.StartTime
	}
	return *e.EndTime
}

func (e Event) IsFull() bool {
	return e.Capacity != nil && e.CurrentSignups >= *e.Capacity
}

func (e Event) VolunteersFull() bool {
	return e.VolunteersNeeded != nil && e.CurrentVolunteers >= *e.VolunteersNeeded
}
