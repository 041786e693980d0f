package repository

import (
	"context"

	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

const (
	evID = iota
	evTitle
	evDescription
	evDate
	evStartTime
	evEndTime
	evLocation
	evCategory
	evCapacity
	evCurrentSignups
	evVolunteersNeeded
	evCurrentVolunteers
	evCurrentWaitlist
	evIsRecurring
	evRecurringGroupID
	evConfirmationMessage
	evCreatedAt
	evUpdatedAt
	evColumns
)

var eventHeader = [evColumns]string{
	"id", "title", "description", "date", "start_time", "end_time", "location", "category",
	"capacity", "current_signups", "volunteers_needed", "current_volunteers", "current_waitlist",
	"is_recurring", "recurring_group_id", "confirmation_message", "created_at", "updated_at",
}

type eventCodec struct{}

func (eventCodec) header() []string         { return eventHeader[:] }
func (eventCodec) id(e models.Event) string { return e.ID }

func (eventCodec) encode(e models.Event) []string {
	row := make([]string, evColumns)
	row[evID] = e.ID
	row[evTitle] = e.Title
	row[evDescription] = e.Description
	row[evDate] = formatDate(e.Date)
	row[evStartTime] = e.StartTime.String()
	row[evEndTime] = formatClockPtr(e.EndTime)
	row[evLocation] = e.Location
	row[evCategory] = e.Category
	row[evCapacity] = formatIntPtr(e.Capacity)
	row[evCurrentSignups] = itoa(e.CurrentSignups)
	row[evVolunteersNeeded] = formatIntPtr(e.VolunteersNeeded)
	row[evCurrentVolunteers] = itoa(e.CurrentVolunteers)
	row[evCurrentWaitlist] = itoa(e.CurrentWaitlist)
	row[evIsRecurring] = formatBool(e.IsRecurring)
	row[evRecurringGroupID] = e.RecurringGroupID
	row[evConfirmationMessage] = e.ConfirmationMessage
	row[evCreatedAt] = formatTime(e.CreatedAt)
	row[evUpdatedAt] = formatTime(e.UpdatedAt)
	return row
}

func (eventCodec) decode(row []string) (models.Event, error) {
	var ce cellErrors
	e := models.Event{
		ID:                  get(row, evID),
		Title:               get(row, evTitle),
		Description:         get(row, evDescription),
		Location:            get(row, evLocation),
		Category:            get(row, evCategory),
		IsRecurring:         parseBool(get(row, evIsRecurring)),
		RecurringGroupID:    get(row, evRecurringGroupID),
		ConfirmationMessage: get(row, evConfirmationMessage),
	}
	var err error
	e.Date, err = parseDate(get(row, evDate))
	ce.check("date", err)
	if s := get(row, evStartTime); s != "" {
		e.StartTime, err = models.ParseTimeOfDay(s)
		ce.check("start_time", err)
	}
	e.EndTime, err = parseClockPtr(get(row, evEndTime))
	ce.check("end_time", err)
	e.Capacity, err = parseIntPtr(get(row, evCapacity))
	ce.check("capacity", err)
	e.CurrentSignups, err = parseCount(get(row, evCurrentSignups))
	ce.check("current_signups", err)
	e.VolunteersNeeded, err = parseIntPtr(get(row, evVolunteersNeeded))
	ce.check("volunteers_needed", err)
	e.CurrentVolunteers, err = parseCount(get(row, evCurrentVolunteers))
	ce.check("current_volunteers", err)
	e.CurrentWaitlist, err = parseCount(get(row, evCurrentWaitlist))
	ce.check("current_waitlist", err)
	e.CreatedAt, err = parseTime(get(row, evCreatedAt))
	ce.check("created_at", err)
	e.UpdatedAt, err = parseTime(get(row, evUpdatedAt))
	ce.check("updated_at", err)
	return e, ce.err
}

type Events struct {
	t table[models.Event]
}

func NewEvents(store rowstore.Store) *Events {
	return &Events{t: newTable[models.Event](store, rowstore.TableEvents, eventCodec{})}
}

func (r *Events) List(ctx context.Context) ([]models.Event, error) { return r.t.list(ctx) }

func (r *Events) Get(ctx context.Context, id string) (*models.Event, error) { return r.t.get(ctx, id) }

func (r *Events) Create(ctx context.Context, events ...models.Event) error {
	return r.t.append(ctx, events...)
}

func (r *Events) Update(ctx context.Context, e models.Event) error { return r.t.update(ctx, e) }

func (r *Events) Delete(ctx context.Context, id string) error { return r.t.delete(ctx, id) }
