package admission

import (
	"time"

	"github.com/gdg-garage/community-events-api/internal/models"
)

// Week is the Monday to Sunday window used for membership quotas.
type Week struct {
	Start time.Time // Monday 00:00:00
	End   time.Time // Sunday 23:59:59
}

// WeekOf returns the week containing the calendar date of d.
func WeekOf(d time.Time) Week {
	day := models.CivilDate(d)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return Week{
		Start: start,
		End:   start.AddDate(0, 0, 7).Add(-time.Second),
	}
}

func (w Week) Contains(d time.Time) bool {
	day := models.CivilDate(d)
	return !day.Before(w.Start) && !day.After(w.End)
}

var weeklyLimits = map[models.MembershipType]int{
	models.MembershipOnceWeekly:  1,
	models.MembershipTwiceWeekly: 2,
}

// WeeklyLimit returns the participant registrations allowed per week for a membership type.
// The second result is false when the membership is unlimited.
func WeeklyLimit(m models.MembershipType) (int, bool) {
	n, ok := weeklyLimits[m]
	return n, ok
}

// WeeklyParticipantCount counts the user's participant registrations whose event falls inside
// week. Waitlist entries count because a promotion needs no further approval. Cancelled and
// rejected entries never count, nor do registrations for events missing from events.
func WeeklyParticipantCount(userID string, week Week, registrations []models.Registration, events map[string]models.Event) int {
	n := 0
	for _, r := range registrations {
		if r.UserID != userID || r.Type != models.TypeParticipant || !countsTowardQuota(r.Status) {
			continue
		}
		e, ok := events[r.EventID]
		if !ok {
			continue
		}
		if week.Contains(e.Date) {
			n++
		}
	}
	return n
}

func countsTowardQuota(s models.Status) bool {
	return s != models.StatusCancelled && s != models.StatusRejected
}
