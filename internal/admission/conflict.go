package admission

import "github.com/gdg-garage/community-events-api/internal/models"

// Overlaps reports whether two events share a calendar date and their half-open time windows
// [start, end) intersect. An event without an end time occupies the single instant of its
// start, so touching boundaries never overlap.
func Overlaps(a, b models.Event) bool {
	if !models.CivilDate(a.Date).Equal(models.CivilDate(b.Date)) {
		return false
	}
	return a.StartTime < b.End() && b.StartTime < a.End()
}

// FindConflict returns the first event in existing that overlaps candidate.
func FindConflict(candidate models.Event, existing []models.Event) (models.Event, bool) {
	for _, e := range existing {
		if e.ID != "" && e.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate, e) {
			return e, true
		}
	}
	return models.Event{}, false
}

func HasConflict(candidate models.Event, existing []models.Event) bool {
	_, ok := FindConflict(candidate, existing)
	return ok
}
