package admission

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

func TestSetStatus_CancelReinstateSymmetry(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addUser("v1", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00", withCapacity(5), withVolunteers(2))
	p := f.mustAdmit("u1", "e1")
	v, err := f.admit("v1", "e1", models.TypeVolunteer)
	require.NoError(t, err)
	start := f.event("e1")

	for _, reg := range []models.Registration{p, *v} {
		_, err := f.engine.SetStatus(f.ctx, reg.ID, models.StatusCancelled)
		require.NoError(t, err)
	}
	cancelled := f.event("e1")
	assert.Equal(t, start.CurrentSignups-1, cancelled.CurrentSignups)
	assert.Equal(t, start.CurrentVolunteers-1, cancelled.CurrentVolunteers)

	for _, reg := range []models.Registration{p, *v} {
		got, err := f.engine.SetStatus(f.ctx, reg.ID, models.StatusRegistered)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRegistered, got.Status)
	}
	end := f.event("e1")
	assert.Equal(t, start.CurrentSignups, end.CurrentSignups)
	assert.Equal(t, start.CurrentVolunteers, end.CurrentVolunteers)
}

func TestSetStatus_ReinstateChecksCapacityAndDuplicates(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addUser("u2", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00", withCapacity(1))

	old := f.mustAdmit("u1", "e1")
	_, err := f.engine.SetStatus(f.ctx, old.ID, models.StatusCancelled)
	require.NoError(t, err)
	f.mustAdmit("u1", "e1")

	_, err = f.engine.SetStatus(f.ctx, old.ID, models.StatusRegistered)
	requireKind(t, err, KindDuplicateRegistration)

	_, err = f.admit("u2", "e1", models.TypeParticipant)
	requireKind(t, err, KindEventFull)
	assert.Equal(t, 1, f.event("e1").CurrentSignups)
}

func TestSetStatus_ReinstateChecksConflict(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addEvent("a", "2026-03-04", "09:00", "11:00")
	f.addEvent("c", "2026-03-04", "10:00", "12:00")

	old := f.mustAdmit("u1", "a")
	_, err := f.engine.SetStatus(f.ctx, old.ID, models.StatusCancelled)
	require.NoError(t, err)
	f.mustAdmit("u1", "c")

	_, err = f.engine.SetStatus(f.ctx, old.ID, models.StatusRegistered)
	requireKind(t, err, KindTimeConflict)
	assert.Equal(t, models.StatusCancelled, f.registration(old.ID).Status)
	assert.Equal(t, 0, f.event("a").CurrentSignups)
}

func TestSetStatus_ReinstateChecksQuota(t *testing.T) {
	f := newFixture(t)
	f.addUser("once", models.MembershipOnceWeekly)
	f.addEvent("mon", "2026-03-02", "09:00", "10:00")
	f.addEvent("wed", "2026-03-04", "09:00", "10:00")

	old := f.mustAdmit("once", "mon")
	_, err := f.engine.SetStatus(f.ctx, old.ID, models.StatusCancelled)
	require.NoError(t, err)
	f.mustAdmit("once", "wed")

	_, err = f.engine.SetStatus(f.ctx, old.ID, models.StatusRegistered)
	requireKind(t, err, KindWeeklyQuotaExceeded)
	assert.Equal(t, models.StatusCancelled, f.registration(old.ID).Status)
}

func TestSetStatus_ReinstateOnFullEvent(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addUser("u2", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00", withCapacity(1))

	r1 := f.mustAdmit("u1", "e1")
	_, err := f.engine.SetStatus(f.ctx, r1.ID, models.StatusCancelled)
	require.NoError(t, err)
	f.mustAdmit("u2", "e1")

	_, err = f.engine.SetStatus(f.ctx, r1.ID, models.StatusRegistered)
	requireKind(t, err, KindEventFull)
	assert.Equal(t, models.StatusCancelled, f.registration(r1.ID).Status)
}

func TestSetStatus_Attendance(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addUser("u2", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00", withCapacity(2))
	r1 := f.mustAdmit("u1", "e1")
	r2 := f.mustAdmit("u2", "e1")

	got, err := f.engine.SetStatus(f.ctx, r1.ID, models.StatusAttended)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAttended, got.Status)
	_, err = f.engine.SetStatus(f.ctx, r2.ID, models.StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, 2, f.event("e1").CurrentSignups)

	for _, to := range []models.Status{models.StatusCancelled, models.StatusRegistered, models.StatusAbsent} {
		_, err = f.engine.SetStatus(f.ctx, r1.ID, to)
		requireKind(t, err, KindInvalidTransition)
	}
	_, err = f.engine.SetStatus(f.ctx, r1.ID, "unknown")
	requireKind(t, err, KindValidation)
	_, err = f.engine.SetStatus(f.ctx, "missing", models.StatusAttended)
	requireKind(t, err, KindRegistrationNotFound)
}

func TestSetStatus_CancelWaitlistEntryRenumbers(t *testing.T) {
	f := newFixture(t)
	_, line := fullEventWithLine(t, f)

	_, err := f.engine.SetStatus(f.ctx, line[0].ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions(t, f, line))
	e := f.event("e1")
	assert.Equal(t, 1, e.CurrentSignups)
	assert.Equal(t, 2, e.CurrentWaitlist)
}

func TestSetStatus_CancelCounterFailureRestoresStatus(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00")
	reg := f.mustAdmit("u1", "e1")

	f.store.failUpdates(rowstore.TableEvents)
	_, err := f.engine.SetStatus(f.ctx, reg.ID, models.StatusCancelled)
	requireKind(t, err, KindUpstream)
	assert.Equal(t, models.StatusRegistered, f.registration(reg.ID).Status)
}

func TestRemove_ArchivesAndReleasesSpot(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00", withCapacity(3))
	reg := f.mustAdmit("u1", "e1")

	h, err := f.engine.Remove(f.ctx, reg.ID, "staff-1", "booked twice")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, h.RegistrationID)
	assert.Equal(t, "staff-1", h.RemovedBy)
	assert.Equal(t, reg.ID, h.Snapshot.ID)
	assert.Equal(t, models.StatusRegistered, h.Snapshot.Status)

	_, err = f.repos.Registrations.Get(f.ctx, reg.ID)
	assert.Error(t, err)
	history, err := f.repos.Removals.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "booked twice", history[0].Reason)
	assert.Equal(t, 0, f.event("e1").CurrentSignups)

	_, err = f.engine.Remove(f.ctx, reg.ID, "staff-1", "again")
	requireKind(t, err, KindRegistrationNotFound)
}

func TestRemove_WaitlistEntry(t *testing.T) {
	f := newFixture(t)
	_, line := fullEventWithLine(t, f)

	_, err := f.engine.Remove(f.ctx, line[1].ID, "staff-1", "")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions(t, f, []models.Registration{line[0], line[2]}))
	assert.Equal(t, 2, f.event("e1").CurrentWaitlist)
}

func TestRemove_CounterFailureRestoresRegistration(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00")
	reg := f.mustAdmit("u1", "e1")

	f.store.failUpdates(rowstore.TableEvents)
	_, err := f.engine.Remove(f.ctx, reg.ID, "staff-1", "")
	requireKind(t, err, KindUpstream)
	assert.Equal(t, models.StatusRegistered, f.registration(reg.ID).Status)
	assert.Empty(t, f.history(), "a rolled back removal leaves no history")
}

func TestRemove_DeleteFailureLeavesNoHistory(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00")
	reg := f.mustAdmit("u1", "e1")

	f.store.failDeletes(rowstore.TableRegistrations)
	_, err := f.engine.Remove(f.ctx, reg.ID, "staff-1", "")
	requireKind(t, err, KindUpstream)
	assert.Equal(t, models.StatusRegistered, f.registration(reg.ID).Status)
	assert.Empty(t, f.history())
	assert.Equal(t, 1, f.event("e1").CurrentSignups)
}

func TestRemove_ArchiveFailureRestoresRegistration(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00")
	reg := f.mustAdmit("u1", "e1")

	f.store.failAppends(rowstore.TableRemovalHistory)
	_, err := f.engine.Remove(f.ctx, reg.ID, "staff-1", "")
	requireKind(t, err, KindUpstream)
	assert.Equal(t, models.StatusRegistered, f.registration(reg.ID).Status)
	assert.Empty(t, f.history())
	assert.Equal(t, 1, f.event("e1").CurrentSignups)
}

// Removing rows of one event shifts the rows of every other event in the shared table.
func TestRemove_ConcurrentWithOtherEventCancellations(t *testing.T) {
	const n = 30
	f := newFixture(t)
	f.addEvent("a", "2026-03-04", "09:00", "11:00")
	f.addEvent("b", "2026-03-05", "09:00", "11:00")
	var removeIDs, cancelIDs []string
	for i := 0; i < n; i++ {
		ua, ub := fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i)
		f.addUser(ua, models.MembershipAdhoc)
		f.addUser(ub, models.MembershipAdhoc)
		removeIDs = append(removeIDs, f.mustAdmit(ua, "a").ID)
		cancelIDs = append(cancelIDs, f.mustAdmit(ub, "b").ID)
	}
	f.store.slowUpdates(time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, id := range removeIDs {
			_, err := f.engine.Remove(f.ctx, id, "staff-1", "")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for _, id := range cancelIDs {
			_, err := f.engine.SetStatus(f.ctx, id, models.StatusCancelled)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	regs, err := f.repos.Registrations.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, regs, n)
	seen := make(map[string]bool, n)
	for _, r := range regs {
		assert.Equal(t, "b", r.EventID)
		assert.Equal(t, models.StatusCancelled, r.Status)
		assert.False(t, seen[r.ID], "duplicated row %s", r.ID)
		seen[r.ID] = true
	}
	for _, id := range cancelIDs {
		assert.True(t, seen[id], "missing registration %s", id)
	}
	assert.Equal(t, 0, f.event("a").CurrentSignups)
	assert.Equal(t, 0, f.event("b").CurrentSignups)
	assert.Len(t, f.history(), n)
}

func TestRemove_EventAlreadyDeleted(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", models.MembershipAdhoc)
	f.addEvent("e1", "2026-03-04", "09:00", "11:00")
	reg := f.mustAdmit("u1", "e1")
	require.NoError(t, f.repos.Events.Delete(f.ctx, "e1"))

	_, err := f.engine.Remove(f.ctx, reg.ID, "staff-1", "event cancelled")
	require.NoError(t, err)
}

func TestReconcile_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	_, line := fullEventWithLine(t, f)

	// simulate a hand edit: counters drift and a row is deleted from the middle of the line
	drifted := f.event("e1")
	drifted.CurrentSignups = 7
	drifted.CurrentVolunteers = 3
	require.NoError(t, f.repos.Events.Update(f.ctx, drifted))
	require.NoError(t, f.repos.Registrations.Delete(f.ctx, line[1].ID))

	e, err := f.engine.Reconcile(f.ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, e.CurrentSignups)
	assert.Equal(t, 0, e.CurrentVolunteers)
	assert.Equal(t, 2, e.CurrentWaitlist)
	assert.Equal(t, []int{1, 2}, positions(t, f, []models.Registration{line[0], line[2]}))

	again, err := f.engine.Reconcile(f.ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, e.CurrentSignups, again.CurrentSignups)

	_, err = f.engine.Reconcile(f.ctx, "missing")
	requireKind(t, err, KindEventNotFound)
}
