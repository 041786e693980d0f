package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gdg-garage/community-events-api/internal/models"
)

var allStatuses = []models.Status{
	models.StatusRegistered, models.StatusAttended, models.StatusAbsent,
	models.StatusCancelled, models.StatusWaitlist, models.StatusRejected,
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]models.Status]bool{
		{models.StatusRegistered, models.StatusAttended}:  true,
		{models.StatusRegistered, models.StatusAbsent}:    true,
		{models.StatusRegistered, models.StatusCancelled}: true,
		{models.StatusWaitlist, models.StatusRegistered}:  true,
		{models.StatusWaitlist, models.StatusRejected}:    true,
		{models.StatusWaitlist, models.StatusCancelled}:   true,
		{models.StatusCancelled, models.StatusRegistered}: true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]models.Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransition(t *testing.T) {
	assert.NoError(t, checkTransition(models.StatusRegistered, models.StatusAttended))
	assert.Equal(t, KindInvalidTransition, CanonicalKind(checkTransition(models.StatusAttended, models.StatusCancelled)))
	assert.Equal(t, KindValidation, CanonicalKind(checkTransition(models.StatusRegistered, "gone")))
}

func TestAdjustSpots_NeverNegative(t *testing.T) {
	e := models.Event{CurrentSignups: 1}
	adjustSpots(&e, models.TypeParticipant, -1)
	adjustSpots(&e, models.TypeParticipant, -1)
	adjustSpots(&e, models.TypeVolunteer, -1)
	assert.Equal(t, 0, e.CurrentSignups)
	assert.Equal(t, 0, e.CurrentVolunteers)
}

func TestCanonicalKind(t *testing.T) {
	assert.Equal(t, Kind(""), CanonicalKind(nil))
	assert.Equal(t, KindUpstream, CanonicalKind(errInjected))
	wrapped := newError(KindEventFull, "full")
	assert.Equal(t, KindEventFull, CanonicalKind(wrapped))
	assert.True(t, KindEventNotFound.IsNotFound())
	assert.False(t, KindEventFull.IsNotFound())
}
