package admission

import (
	"testing"
	"time"

	"github.com/gdg-garage/community-events-api/internal/models"
)

func ev(id, date, start, end string) models.Event {
	d, _ := models.ParseDate(date)
	s, _ := models.ParseTimeOfDay(start)
	e := models.Event{ID: id, Date: d, StartTime: s}
	if end != "" {
		en, _ := models.ParseTimeOfDay(end)
		e.EndTime = &en
	}
	return e
}

func TestHasConflict(t *testing.T) {
	booked := ev("a", "2026-03-04", "09:00", "11:00")
	tests := []struct {
		name      string
		candidate models.Event
		want      bool
	}{
		{"overlapping window", ev("b", "2026-03-04", "10:00", "12:00"), true},
		{"adjacent window", ev("b", "2026-03-04", "11:00", "12:00"), false},
		{"window ending at start", ev("b", "2026-03-04", "08:00", "09:00"), false},
		{"enclosing window", ev("b", "2026-03-04", "08:00", "12:00"), true},
		{"same window different day", ev("b", "2026-03-05", "09:00", "11:00"), false},
		{"zero duration inside window", ev("b", "2026-03-04", "10:00", ""), true},
		{"zero duration on start boundary", ev("b", "2026-03-04", "09:00", ""), false},
		{"zero duration on end boundary", ev("b", "2026-03-04", "11:00", ""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasConflict(tt.candidate, []models.Event{booked}); got != tt.want {
				t.Errorf("HasConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasConflict_IgnoresDateTimeOfDay(t *testing.T) {
	a := ev("a", "2026-03-04", "09:00", "11:00")
	b := ev("b", "2026-03-04", "10:00", "12:00")
	b.Date = b.Date.Add(15 * time.Hour)
	if !HasConflict(a, []models.Event{b}) {
		t.Error("events on the same calendar date should be compared by time of day")
	}
}

func TestFindConflict_SkipsSameEvent(t *testing.T) {
	a := ev("a", "2026-03-04", "09:00", "11:00")
	if _, ok := FindConflict(a, []models.Event{a}); ok {
		t.Error("an event must not conflict with itself")
	}
}
