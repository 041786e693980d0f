package admission

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/keylock"
	"github.com/gdg-garage/community-events-api/internal/metrics"
	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
)

// ApproveWaitlist moves a pending waitlist request to the end of the event's active waitlist.
func (e *Engine) ApproveWaitlist(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, err := e.approveWaitlist(ctx, registrationID)
	e.observe("approve_waitlist", err)
	return reg, err
}

func (e *Engine) approveWaitlist(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, unlock, err := e.lockRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if reg.Status != models.StatusWaitlist || reg.WaitlistPosition != nil {
		return nil, newError(KindValidation, "registration %s is not a pending waitlist request", reg.ID)
	}
	event, err := e.getEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	regs, err := e.registrations.ListByEvent(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	waiting := 0
	for _, r := range regs {
		if r.OnActiveWaitlist() {
			waiting++
		}
	}

	prev := reg
	pos := waiting + 1
	reg.WaitlistPosition = &pos
	reg.UpdatedAt = e.now().UTC()
	if err := e.registrations.Update(ctx, reg); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	event.CurrentWaitlist++
	event.UpdatedAt = reg.UpdatedAt
	if err := e.events.Update(ctx, event); err != nil {
		e.revert(ctx, prev)
		return nil, fmt.Errorf("update event counters: %w", err)
	}
	return &reg, nil
}

// RejectWaitlist declines a waitlist entry. A rejected entry is final.
func (e *Engine) RejectWaitlist(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, err := e.rejectWaitlist(ctx, registrationID)
	e.observe("reject_waitlist", err)
	return reg, err
}

func (e *Engine) rejectWaitlist(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, unlock, err := e.lockRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := checkTransition(reg.Status, models.StatusRejected); err != nil {
		return nil, err
	}
	return e.leaveWaitlist(ctx, reg, models.StatusRejected)
}

// leaveWaitlist moves a waitlist entry to a status that holds no position, releasing its
// place in line. Caller holds the event lock.
func (e *Engine) leaveWaitlist(ctx context.Context, reg models.Registration, to models.Status) (*models.Registration, error) {
	positioned := reg.OnActiveWaitlist()
	prev := reg
	reg.Status = to
	reg.WaitlistPosition = nil
	reg.UpdatedAt = e.now().UTC()
	if err := e.registrations.Update(ctx, reg); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	if !positioned {
		return &reg, nil
	}
	if err := e.releaseWaitlistSlot(ctx, reg.EventID, func() { e.revert(ctx, prev) }); err != nil {
		return nil, err
	}
	return &reg, nil
}

// releaseWaitlistSlot decrements the cached waitlist counter and closes the gap in the
// positions. undo runs if the counter cannot be read or written.
func (e *Engine) releaseWaitlistSlot(ctx context.Context, eventID string, undo func()) error {
	event, err := e.getEvent(ctx, eventID)
	if CanonicalKind(err) == KindEventNotFound {
		return nil
	}
	if err != nil {
		undo()
		return err
	}
	event.CurrentWaitlist = max(0, event.CurrentWaitlist-1)
	event.UpdatedAt = e.now().UTC()
	if err := e.events.Update(ctx, event); err != nil {
		undo()
		return fmt.Errorf("update event counters: %w", err)
	}
	_, err = e.renumberEvent(ctx, eventID)
	return err
}

// Promote registers the first person on the event's active waitlist.
func (e *Engine) Promote(ctx context.Context, eventID string) (*models.Registration, error) {
	reg, err := e.promote(ctx, eventID)
	e.observe("promote", err)
	return reg, err
}

func (e *Engine) promote(ctx context.Context, eventID string) (*models.Registration, error) {
	unlock := e.locks.Lock(keylock.EventKey(eventID))
	defer unlock()

	event, err := e.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	regs, err := e.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	line := activeWaitlist(regs)
	if len(line) == 0 {
		return nil, newError(KindValidation, "nobody is on the waitlist for %s", event.Title)
	}
	return e.promoteEntry(ctx, event, line[0])
}

// promoteEntry registers a waitlist entry if the event has room and the member's other
// bookings still allow it. Caller holds the event lock.
func (e *Engine) promoteEntry(ctx context.Context, event models.Event, reg models.Registration) (*models.Registration, error) {
	if err := checkCapacity(event, reg.Type); err != nil {
		return nil, err
	}
	unlockUser, err := e.checkStanding(ctx, reg)
	if err != nil {
		return nil, err
	}
	defer unlockUser()
	positioned := reg.OnActiveWaitlist()
	prev := reg
	now := e.now().UTC()
	reg.Status = models.StatusRegistered
	reg.WaitlistPosition = nil
	reg.PromotedAt = &now
	reg.UpdatedAt = now
	if err := e.registrations.Update(ctx, reg); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	adjustSpots(&event, reg.Type, 1)
	if positioned {
		event.CurrentWaitlist = max(0, event.CurrentWaitlist-1)
	}
	event.UpdatedAt = now
	if err := e.events.Update(ctx, event); err != nil {
		e.revert(ctx, prev)
		return nil, fmt.Errorf("update event counters: %w", err)
	}
	if positioned {
		if _, err := e.renumberEvent(ctx, event.ID); err != nil {
			return nil, err
		}
	}
	metrics.RecordPromotion()
	e.notifier.Promoted(event, reg)
	return &reg, nil
}

// activeWaitlist returns the positioned entries in line order. Ties, which only appear after
// manual edits, fall back to request time.
func activeWaitlist(regs []models.Registration) []models.Registration {
	var line []models.Registration
	for _, r := range regs {
		if r.OnActiveWaitlist() {
			line = append(line, r)
		}
	}
	sort.SliceStable(line, func(i, j int) bool {
		pi, pj := *line[i].WaitlistPosition, *line[j].WaitlistPosition
		if pi != pj {
			return pi < pj
		}
		return line[i].RegisteredAt.Before(line[j].RegisteredAt)
	})
	return line
}

// renumberEvent rewrites the event's waitlist positions as 1..n keeping their relative order
// and returns n. Only entries whose position changes are written.
func (e *Engine) renumberEvent(ctx context.Context, eventID string) (int, error) {
	regs, err := e.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("list registrations: %w", err)
	}
	line := activeWaitlist(regs)
	now := e.now().UTC()
	for i, r := range line {
		want := i + 1
		if *r.WaitlistPosition == want {
			continue
		}
		r.WaitlistPosition = &want
		r.UpdatedAt = now
		if err := e.registrations.Update(ctx, r); err != nil {
			return 0, fmt.Errorf("renumber waitlist: %w", err)
		}
	}
	return len(line), nil
}

// lockRegistration takes the lock of the registration's event and returns the registration as
// read under that lock.
func (e *Engine) lockRegistration(ctx context.Context, id string) (models.Registration, func(), error) {
	reg, err := e.getRegistration(ctx, id)
	if err != nil {
		return models.Registration{}, nil, err
	}
	unlock := e.locks.Lock(keylock.EventKey(reg.EventID))
	reg, err = e.getRegistration(ctx, id)
	if err != nil {
		unlock()
		return models.Registration{}, nil, err
	}
	return *reg, unlock, nil
}

func (e *Engine) getRegistration(ctx context.Context, id string) (*models.Registration, error) {
	reg, err := e.registrations.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindRegistrationNotFound, "registration %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (e *Engine) getEvent(ctx context.Context, id string) (models.Event, error) {
	ev, err := e.events.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Event{}, newError(KindEventNotFound, "event %s not found", id)
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("get event: %w", err)
	}
	return *ev, nil
}

// revert restores a registration row after a later write in the same operation failed.
func (e *Engine) revert(ctx context.Context, prev models.Registration) {
	if err := e.registrations.Update(context.WithoutCancel(ctx), prev); err != nil {
		e.log.Error("restoring registration failed", zap.String("registration_id", prev.ID), zap.Error(err))
	}
}
