package catalog

import (
	"time"

	"github.com/gdg-garage/community-events-api/internal/admission"
	"github.com/gdg-garage/community-events-api/internal/models"
)

// MaxOccurrences bounds a single recurrence expansion.
const MaxOccurrences = 52

type Frequency string

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

// Recurrence repeats an event either Count times or until the Until date, whichever the
// caller sets. Count includes the first occurrence.
type Recurrence struct {
	Frequency Frequency  `json:"frequency" validate:"required,oneof=daily weekly biweekly monthly"`
	Count     int        `json:"count,omitempty" validate:"omitempty,min=1,max=52"`
	Until     *time.Time `json:"until,omitempty"`
}

// Dates expands the rule starting at first. Monthly occurrences keep the day of month, clamped
// to the last day of shorter months.
func (r Recurrence) Dates(first time.Time) ([]time.Time, error) {
	first = models.CivilDate(first)
	if r.Count == 0 && r.Until == nil {
		return nil, admission.NewError(admission.KindValidation, "recurrence needs a count or an end date")
	}
	var until time.Time
	if r.Until != nil {
		until = models.CivilDate(*r.Until)
		if until.Before(first) {
			return nil, admission.NewError(admission.KindValidation, "recurrence ends before it starts")
		}
	}
	limit := MaxOccurrences
	if r.Count > 0 && r.Count < limit {
		limit = r.Count
	}

	dates := make([]time.Time, 0, limit)
	for i := 0; len(dates) < limit; i++ {
		d, err := r.nth(first, i)
		if err != nil {
			return nil, err
		}
		if !until.IsZero() && d.After(until) {
			break
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (r Recurrence) nth(first time.Time, i int) (time.Time, error) {
	switch r.Frequency {
	case Daily:
		return first.AddDate(0, 0, i), nil
	case Weekly:
		return first.AddDate(0, 0, 7*i), nil
	case Biweekly:
		return first.AddDate(0, 0, 14*i), nil
	case Monthly:
		return addMonths(first, i), nil
	}
	return time.Time{}, admission.NewError(admission.KindValidation, "unknown frequency %q", r.Frequency)
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := firstOfTarget.AddDate(0, 1, -1).Day()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), min(d, last), 0, 0, 0, 0, time.UTC)
}
