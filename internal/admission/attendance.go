package admission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/keylock"
	"github.com/gdg-garage/community-events-api/internal/models"
)

// SetStatus applies a status transition and keeps the event counters and waitlist positions in
// step with it.
func (e *Engine) SetStatus(ctx context.Context, registrationID string, to models.Status) (*models.Registration, error) {
	reg, err := e.setStatus(ctx, registrationID, to)
	e.observe("set_status", err)
	return reg, err
}

func (e *Engine) setStatus(ctx context.Context, registrationID string, to models.Status) (*models.Registration, error) {
	reg, unlock, err := e.lockRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := checkTransition(reg.Status, to); err != nil {
		return nil, err
	}
	switch {
	case reg.Status == models.StatusWaitlist && to == models.StatusRegistered:
		event, err := e.getEvent(ctx, reg.EventID)
		if err != nil {
			return nil, err
		}
		return e.promoteEntry(ctx, event, reg)
	case reg.Status == models.StatusWaitlist:
		return e.leaveWaitlist(ctx, reg, to)
	case reg.Status == models.StatusCancelled && to == models.StatusRegistered:
		return e.reinstate(ctx, reg)
	case to == models.StatusCancelled:
		return e.cancel(ctx, reg)
	}

	// attended and absent keep the spot, so no counter moves
	reg.Status = to
	reg.UpdatedAt = e.now().UTC()
	if err := e.registrations.Update(ctx, reg); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return &reg, nil
}

// cancel releases the spot of a registered entry. Caller holds the event lock.
func (e *Engine) cancel(ctx context.Context, reg models.Registration) (*models.Registration, error) {
	prev := reg
	reg.Status = models.StatusCancelled
	reg.UpdatedAt = e.now().UTC()
	if err := e.registrations.Update(ctx, reg); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	if !prev.Status.HoldsSpot() {
		return &reg, nil
	}
	event, err := e.getEvent(ctx, reg.EventID)
	if CanonicalKind(err) == KindEventNotFound {
		return &reg, nil
	}
	if err != nil {
		e.revert(ctx, prev)
		return nil, err
	}
	adjustSpots(&event, reg.Type, -1)
	event.UpdatedAt = reg.UpdatedAt
	if err := e.events.Update(ctx, event); err != nil {
		e.revert(ctx, prev)
		return nil, fmt.Errorf("update event counters: %w", err)
	}
	return &reg, nil
}

// reinstate re-registers a cancelled entry subject to the duplicate, capacity, conflict and
// quota rules. Caller holds the event lock.
func (e *Engine) reinstate(ctx context.Context, reg models.Registration) (*models.Registration, error) {
	event, err := e.getEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	regs, err := e.registrations.ListByEvent(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	if err := checkDuplicate(regs, reg.UserID, reg.EventID, reg.ID); err != nil {
		return nil, err
	}
	if err := checkCapacity(event, reg.Type); err != nil {
		return nil, err
	}
	unlockUser, err := e.checkStanding(ctx, reg)
	if err != nil {
		return nil, err
	}
	defer unlockUser()

	prev := reg
	reg.Status = models.StatusRegistered
	reg.UpdatedAt = e.now().UTC()
	if err := e.registrations.Update(ctx, reg); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	adjustSpots(&event, reg.Type, 1)
	event.UpdatedAt = reg.UpdatedAt
	if err := e.events.Update(ctx, event); err != nil {
		e.revert(ctx, prev)
		return nil, fmt.Errorf("update event counters: %w", err)
	}
	return &reg, nil
}

// Remove deletes a registration and archives a snapshot of it, then releases whatever the
// registration occupied exactly as a cancellation would. A removal that fails part way leaves
// neither the deletion nor the archive entry behind.
func (e *Engine) Remove(ctx context.Context, registrationID, removedBy, reason string) (*models.RemovalHistory, error) {
	h, err := e.remove(ctx, registrationID, removedBy, reason)
	e.observe("remove", err)
	return h, err
}

func (e *Engine) remove(ctx context.Context, registrationID, removedBy, reason string) (*models.RemovalHistory, error) {
	reg, unlock, err := e.lockRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	h := models.RemovalHistory{
		ID:             uuid.NewString(),
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		Snapshot:       reg,
		RemovedBy:      removedBy,
		Reason:         reason,
		RemovedAt:      e.now().UTC(),
	}
	if err := e.registrations.Delete(ctx, reg.ID); err != nil {
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	restoreRow := func() {
		if err := e.registrations.Create(context.WithoutCancel(ctx), reg); err != nil {
			e.log.Error("restoring removed registration failed", zap.String("registration_id", reg.ID), zap.Error(err))
		}
	}
	if err := e.removals.Append(ctx, h); err != nil {
		restoreRow()
		return nil, fmt.Errorf("archive registration: %w", err)
	}
	undo := func() {
		restoreRow()
		if err := e.removals.Discard(context.WithoutCancel(ctx), h.ID); err != nil {
			e.log.Error("discarding removal history failed", zap.String("history_id", h.ID), zap.Error(err))
		}
	}

	switch {
	case reg.Status.HoldsSpot():
		event, err := e.getEvent(ctx, reg.EventID)
		if CanonicalKind(err) == KindEventNotFound {
			break
		}
		if err != nil {
			undo()
			return nil, err
		}
		adjustSpots(&event, reg.Type, -1)
		event.UpdatedAt = h.RemovedAt
		if err := e.events.Update(ctx, event); err != nil {
			undo()
			return nil, fmt.Errorf("update event counters: %w", err)
		}
	case reg.OnActiveWaitlist():
		if err := e.releaseWaitlistSlot(ctx, reg.EventID, undo); err != nil {
			return nil, err
		}
	}
	return &h, nil
}

// Reconcile recomputes the cached counters of an event from its registrations and closes any
// gaps in the waitlist positions. It repairs drift left by manual edits to the row store.
func (e *Engine) Reconcile(ctx context.Context, eventID string) (*models.Event, error) {
	ev, err := e.reconcile(ctx, eventID)
	e.observe("reconcile", err)
	return ev, err
}

func (e *Engine) reconcile(ctx context.Context, eventID string) (*models.Event, error) {
	unlock := e.locks.Lock(keylock.EventKey(eventID))
	defer unlock()

	event, err := e.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	waiting, err := e.renumberEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	regs, err := e.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	signups, volunteers := 0, 0
	for _, r := range regs {
		if !r.Status.HoldsSpot() {
			continue
		}
		switch r.Type {
		case models.TypeParticipant:
			signups++
		case models.TypeVolunteer:
			volunteers++
		}
	}
	if event.CurrentSignups == signups && event.CurrentVolunteers == volunteers && event.CurrentWaitlist == waiting {
		return &event, nil
	}
	e.log.Info("event counters reconciled",
		zap.String("event_id", eventID),
		zap.Int("signups_before", event.CurrentSignups), zap.Int("signups", signups),
		zap.Int("volunteers_before", event.CurrentVolunteers), zap.Int("volunteers", volunteers),
		zap.Int("waitlist_before", event.CurrentWaitlist), zap.Int("waitlist", waiting))
	event.CurrentSignups = signups
	event.CurrentVolunteers = volunteers
	event.CurrentWaitlist = waiting
	event.UpdatedAt = e.now().UTC()
	if err := e.events.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("update event counters: %w", err)
	}
	return &event, nil
}
