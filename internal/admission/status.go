package admission

import "github.com/gdg-garage/community-events-api/internal/models"

// transitions lists the statuses each status may move to. Statuses not listed as keys are
// terminal.
var transitions = map[models.Status][]models.Status{
	models.StatusRegistered: {models.StatusAttended, models.StatusAbsent, models.StatusCancelled},
	models.StatusWaitlist:   {models.StatusRegistered, models.StatusRejected, models.StatusCancelled},
	models.StatusCancelled:  {models.StatusRegistered},
}

func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to models.Status) error {
	if !to.Valid() {
		return newError(KindValidation, "unknown status %q", to)
	}
	if !CanTransition(from, to) {
		return newError(KindInvalidTransition, "cannot change status from %s to %s", from, to).
			with("from", string(from)).
			with("to", string(to))
	}
	return nil
}

// adjustSpots moves the cached counter matching the registration type by delta, never below zero.
func adjustSpots(e *models.Event, t models.RegistrationType, delta int) {
	switch t {
	case models.TypeParticipant:
		e.CurrentSignups = max(0, e.CurrentSignups+delta)
	case models.TypeVolunteer:
		e.CurrentVolunteers = max(0, e.CurrentVolunteers+delta)
	}
}

func checkCapacity(e models.Event, t models.RegistrationType) error {
	switch t {
	case models.TypeParticipant:
		if e.IsFull() {
			return newError(KindEventFull, "%s is full", e.Title).
				with("capacity", *e.Capacity).
				with("currentSignups", e.CurrentSignups)
		}
	case models.TypeVolunteer:
		if e.VolunteersFull() {
			return newError(KindVolunteerSlotsFull, "all volunteer slots for %s are taken", e.Title).
				with("volunteersNeeded", *e.VolunteersNeeded).
				with("currentVolunteers", e.CurrentVolunteers)
		}
	}
	return nil
}
