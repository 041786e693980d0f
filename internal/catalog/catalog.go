// Package catalog is the staff-facing event store: creating single and recurring events,
// editing them and removing them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/admission"
	"github.com/gdg-garage/community-events-api/internal/keylock"
	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
)

type Catalog struct {
	events   *repository.Events
	locks    *keylock.Locker
	log      *zap.Logger
	now      func() time.Time
	validate *validator.Validate
}

// New shares locks with the admission engine so edits and admissions of one event serialize.
func New(events *repository.Events, locks *keylock.Locker, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{events: events, locks: locks, log: log, now: time.Now, validate: validator.New()}
}

type Draft struct {
	Title               string            `validate:"required,max=200"`
	Description         string            `validate:"max=5000"`
	Date                time.Time
	StartTime           models.TimeOfDay  `validate:"min=0,max=1439"`
	EndTime             *models.TimeOfDay `validate:"omitempty,min=0,max=1439"`
	Location            string            `validate:"required,max=200"`
	Category            string            `validate:"max=100"`
	Capacity            *int              `validate:"omitempty,min=0"`
	VolunteersNeeded    *int              `validate:"omitempty,min=0"`
	ConfirmationMessage string            `validate:"max=2000"`
}

// Create stores one event, or one event per occurrence of rec sharing a recurring group id.
func (c *Catalog) Create(ctx context.Context, d Draft, rec *Recurrence) ([]models.Event, error) {
	if err := c.check(d); err != nil {
		return nil, err
	}
	dates := []time.Time{models.CivilDate(d.Date)}
	groupID := ""
	if rec != nil {
		if err := c.validate.Struct(rec); err != nil {
			return nil, admission.NewError(admission.KindValidation, "invalid recurrence: %v", err)
		}
		var err error
		if dates, err = rec.Dates(d.Date); err != nil {
			return nil, err
		}
		groupID = uuid.NewString()
	}

	now := c.now().UTC()
	events := make([]models.Event, 0, len(dates))
	for _, date := range dates {
		events = append(events, models.Event{
			ID:                  uuid.NewString(),
			Title:               strings.TrimSpace(d.Title),
			Description:         d.Description,
			Date:                date,
			StartTime:           d.StartTime,
			EndTime:             d.EndTime,
			Location:            d.Location,
			Category:            d.Category,
			Capacity:            d.Capacity,
			VolunteersNeeded:    d.VolunteersNeeded,
			IsRecurring:         groupID != "",
			RecurringGroupID:    groupID,
			ConfirmationMessage: d.ConfirmationMessage,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}
	if err := c.events.Create(ctx, events...); err != nil {
		return nil, fmt.Errorf("create events: %w", err)
	}
	c.log.Info("events created", zap.Int("count", len(events)), zap.String("recurring_group_id", groupID))
	return events, nil
}

func (c *Catalog) check(d Draft) error {
	if err := c.validate.Struct(d); err != nil {
		return admission.NewError(admission.KindValidation, "invalid event: %v", err)
	}
	if d.Date.IsZero() {
		return admission.NewError(admission.KindValidation, "event date is required")
	}
	if d.EndTime != nil && *d.EndTime < d.StartTime {
		return admission.NewError(admission.KindValidation, "event ends before it starts")
	}
	return nil
}

// Patch holds the fields to change; nil leaves a field as it is. The Clear flags remove an
// optional value.
type Patch struct {
	Title               *string
	Description         *string
	Date                *time.Time
	StartTime           *models.TimeOfDay
	EndTime             *models.TimeOfDay
	ClearEndTime        bool
	Location            *string
	Category            *string
	Capacity            *int
	ClearCapacity       bool
	VolunteersNeeded    *int
	ClearVolunteers     bool
	ConfirmationMessage *string
}

// Update edits an event. Capacities may not drop below the places already taken.
func (c *Catalog) Update(ctx context.Context, id string, p Patch) (*models.Event, error) {
	unlock := c.locks.Lock(keylock.EventKey(id))
	defer unlock()

	e, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(e, p)
	d := Draft{
		Title: e.Title, Description: e.Description, Date: e.Date, StartTime: e.StartTime, EndTime: e.EndTime,
		Location: e.Location, Category: e.Category, Capacity: e.Capacity, VolunteersNeeded: e.VolunteersNeeded,
		ConfirmationMessage: e.ConfirmationMessage,
	}
	if err := c.check(d); err != nil {
		return nil, err
	}
	if e.Capacity != nil && *e.Capacity < e.CurrentSignups {
		return nil, admission.NewError(admission.KindValidation,
			"capacity %d is below the %d places already taken", *e.Capacity, e.CurrentSignups)
	}
	if e.VolunteersNeeded != nil && *e.VolunteersNeeded < e.CurrentVolunteers {
		return nil, admission.NewError(admission.KindValidation,
			"volunteers needed %d is below the %d volunteers signed up", *e.VolunteersNeeded, e.CurrentVolunteers)
	}
	e.UpdatedAt = c.now().UTC()
	if err := c.events.Update(ctx, *e); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return e, nil
}

func apply(e *models.Event, p Patch) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = models.CivilDate(*p.Date)
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = p.EndTime
	}
	if p.ClearEndTime {
		e.EndTime = nil
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Capacity != nil {
		e.Capacity = p.Capacity
	}
	if p.ClearCapacity {
		e.Capacity = nil
	}
	if p.VolunteersNeeded != nil {
		e.VolunteersNeeded = p.VolunteersNeeded
	}
	if p.ClearVolunteers {
		e.VolunteersNeeded = nil
	}
	if p.ConfirmationMessage != nil {
		e.ConfirmationMessage = *p.ConfirmationMessage
	}
}

// Delete removes an event, or every event of its recurring group when series is set, and
// returns how many were removed. Registrations are left in place for the record.
func (c *Catalog) Delete(ctx context.Context, id string, series bool) (int, error) {
	e, err := c.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	targets := []string{e.ID}
	if series && e.RecurringGroupID != "" {
		all, err := c.events.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("list events: %w", err)
		}
		targets = targets[:0]
		for _, other := range all {
			if other.RecurringGroupID == e.RecurringGroupID {
				targets = append(targets, other.ID)
			}
		}
	}

	deleted := 0
	for _, target := range targets {
		if err := c.deleteOne(ctx, target); err != nil {
			return deleted, err
		}
		deleted++
	}
	c.log.Info("events deleted", zap.String("event_id", id), zap.Int("count", deleted))
	return deleted, nil
}

func (c *Catalog) deleteOne(ctx context.Context, id string) error {
	unlock := c.locks.Lock(keylock.EventKey(id))
	defer unlock()
	err := c.events.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*models.Event, error) {
	e, err := c.events.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, admission.NewError(admission.KindEventNotFound, "event %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Filter narrows List. Zero values match everything; From and To are inclusive dates.
type Filter struct {
	From             time.Time
	To               time.Time
	Category         string
	RecurringGroupID string
}

func (f Filter) match(e models.Event) bool {
	d := models.CivilDate(e.Date)
	if !f.From.IsZero() && d.Before(models.CivilDate(f.From)) {
		return false
	}
	if !f.To.IsZero() && d.After(models.CivilDate(f.To)) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(f.Category, e.Category) {
		return false
	}
	if f.RecurringGroupID != "" && f.RecurringGroupID != e.RecurringGroupID {
		return false
	}
	return true
}

// List returns matching events in chronological order.
func (c *Catalog) List(ctx context.Context, f Filter) ([]models.Event, error) {
	all, err := c.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]models.Event, 0, len(all))
	for _, e := range all {
		if f.match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}
