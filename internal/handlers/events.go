package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/admission"
	"github.com/gdg-garage/community-events-api/internal/auth"
	"github.com/gdg-garage/community-events-api/internal/catalog"
	"github.com/gdg-garage/community-events-api/internal/models"
)

type EventHandler struct {
	catalog     *catalog.Catalog
	engine      *admission.Engine
	authHandler *auth.AuthHandler
	log         *zap.Logger
}

func NewEventHandler(c *catalog.Catalog, engine *admission.Engine, authHandler *auth.AuthHandler, log *zap.Logger) *EventHandler {
	return &EventHandler{catalog: c, engine: engine, authHandler: authHandler, log: log}
}

// EventView renders times of day as HH:MM and dates as YYYY-MM-DD.
type EventView struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	Date                string    `json:"date" example:"2026-03-02"`
	StartTime           string    `json:"start_time" example:"18:00"`
	EndTime             string    `json:"end_time,omitempty" example:"20:00"`
	Location            string    `json:"location"`
	Category            string    `json:"category,omitempty"`
	Capacity            *int      `json:"capacity,omitempty"`
	CurrentSignups      int       `json:"current_signups"`
	VolunteersNeeded    *int      `json:"volunteers_needed,omitempty"`
	CurrentVolunteers   int       `json:"current_volunteers"`
	CurrentWaitlist     int       `json:"current_waitlist"`
	IsFull              bool      `json:"is_full"`
	IsRecurring         bool      `json:"is_recurring"`
	RecurringGroupID    string    `json:"recurring_group_id,omitempty"`
	ConfirmationMessage string    `json:"confirmation_message,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func viewEvent(e models.Event) EventView {
	v := EventView{
		ID:                  e.ID,
		Title:               e.Title,
		Description:         e.Description,
		Date:                e.Date.Format(models.DateLayout),
		StartTime:           e.StartTime.String(),
		Location:            e.Location,
		Category:            e.Category,
		Capacity:            e.Capacity,
		CurrentSignups:      e.CurrentSignups,
		VolunteersNeeded:    e.VolunteersNeeded,
		CurrentVolunteers:   e.CurrentVolunteers,
		CurrentWaitlist:     e.CurrentWaitlist,
		IsFull:              e.IsFull(),
		IsRecurring:         e.IsRecurring,
		RecurringGroupID:    e.RecurringGroupID,
		ConfirmationMessage: e.ConfirmationMessage,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
	if e.EndTime != nil {
		v.EndTime = e.EndTime.String()
	}
	return v
}

func viewEvents(events []models.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, viewEvent(e))
	}
	return out
}

type ListEventsRequest struct {
	From     string `query:"from" doc:"Earliest date (YYYY-MM-DD)"`
	To       string `query:"to" doc:"Latest date (YYYY-MM-DD)"`
	Category string `query:"category"`
	Group    string `query:"recurring_group_id"`
}

type EventsResponse struct {
	Body []EventView
}

func (h *EventHandler) HandleList(ctx context.Context, input *ListEventsRequest) (*EventsResponse, error) {
	f := catalog.Filter{Category: input.Category, RecurringGroupID: input.Group}
	var err error
	if f.From, err = optionalDate("from", input.From); err != nil {
		return nil, toHTTPError(h.log, "list_events", err)
	}
	if f.To, err = optionalDate("to", input.To); err != nil {
		return nil, toHTTPError(h.log, "list_events", err)
	}
	events, err := h.catalog.List(ctx, f)
	if err != nil {
		return nil, toHTTPError(h.log, "list_events", err)
	}
	return &EventsResponse{Body: viewEvents(events)}, nil
}

type EventIDRequest struct {
	ID string `path:"id"`
}

type EventResponse struct {
	Body EventView
}

func (h *EventHandler) HandleGet(ctx context.Context, input *EventIDRequest) (*EventResponse, error) {
	e, err := h.catalog.Get(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(h.log, "get_event", err)
	}
	return &EventResponse{Body: viewEvent(*e)}, nil
}

type CreateEventRequest struct {
	auth.AuthInput
	Body struct {
		Title               string              `json:"title" maxLength:"200"`
		Description         string              `json:"description,omitempty"`
		Date                string              `json:"date" example:"2026-03-02"`
		StartTime           string              `json:"start_time" example:"18:00"`
		EndTime             string              `json:"end_time,omitempty" example:"20:00"`
		Location            string              `json:"location"`
		Category            string              `json:"category,omitempty"`
		Capacity            *int                `json:"capacity,omitempty" minimum:"0" doc:"Omit for unlimited"`
		VolunteersNeeded    *int                `json:"volunteers_needed,omitempty" minimum:"0"`
		ConfirmationMessage string              `json:"confirmation_message,omitempty" doc:"Placeholders: {name} {event} {date} {time} {location}"`
		Recurrence          *RecurrenceBody     `json:"recurrence,omitempty"`
	}
}

type RecurrenceBody struct {
	Frequency catalog.Frequency `json:"frequency" enum:"daily,weekly,biweekly,monthly"`
	Count     int               `json:"count,omitempty" maximum:"52" doc:"Occurrences including the first"`
	Until     string            `json:"until,omitempty" example:"2026-06-30"`
}

type CreateEventResponse struct {
	Status int
	Body   []EventView
}

func (h *EventHandler) HandleCreate(ctx context.Context, input *CreateEventRequest) (*CreateEventResponse, error) {
	if _, err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	b := input.Body
	d := catalog.Draft{
		Title:               b.Title,
		Description:         b.Description,
		Location:            b.Location,
		Category:            b.Category,
		Capacity:            b.Capacity,
		VolunteersNeeded:    b.VolunteersNeeded,
		ConfirmationMessage: b.ConfirmationMessage,
	}
	var err error
	if d.Date, err = models.ParseDate(b.Date); err != nil {
		return nil, toHTTPError(h.log, "create_event", invalidField("date", err))
	}
	if d.StartTime, err = models.ParseTimeOfDay(b.StartTime); err != nil {
		return nil, toHTTPError(h.log, "create_event", invalidField("start_time", err))
	}
	if b.EndTime != "" {
		end, err := models.ParseTimeOfDay(b.EndTime)
		if err != nil {
			return nil, toHTTPError(h.log, "create_event", invalidField("end_time", err))
		}
		d.EndTime = &end
	}

	var rec *catalog.Recurrence
	if r := b.Recurrence; r != nil {
		rec = &catalog.Recurrence{Frequency: r.Frequency, Count: r.Count}
		if r.Until != "" {
			until, err := models.ParseDate(r.Until)
			if err != nil {
				return nil, toHTTPError(h.log, "create_event", invalidField("recurrence.until", err))
			}
			rec.Until = &until
		}
	}

	events, err := h.catalog.Create(ctx, d, rec)
	if err != nil {
		return nil, toHTTPError(h.log, "create_event", err)
	}
	return &CreateEventResponse{Status: http.StatusCreated, Body: viewEvents(events)}, nil
}

type UpdateEventRequest struct {
	auth.AuthInput
	ID   string `path:"id"`
	Body struct {
		Title                 *string `json:"title,omitempty"`
		Description           *string `json:"description,omitempty"`
		Date                  *string `json:"date,omitempty"`
		StartTime             *string `json:"start_time,omitempty"`
		EndTime               *string `json:"end_time,omitempty" doc:"Empty string clears the end time"`
		Location              *string `json:"location,omitempty"`
		Category              *string `json:"category,omitempty"`
		Capacity              *int    `json:"capacity,omitempty" minimum:"0"`
		ClearCapacity         bool    `json:"clear_capacity,omitempty" doc:"Make the event unlimited"`
		VolunteersNeeded      *int    `json:"volunteers_needed,omitempty" minimum:"0"`
		ClearVolunteersNeeded bool    `json:"clear_volunteers_needed,omitempty"`
		ConfirmationMessage   *string `json:"confirmation_message,omitempty"`
	}
}

func (h *EventHandler) HandleUpdate(ctx context.Context, input *UpdateEventRequest) (*EventResponse, error) {
	if _, err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	b := input.Body
	p := catalog.Patch{
		Title:               b.Title,
		Description:         b.Description,
		Location:            b.Location,
		Category:            b.Category,
		Capacity:            b.Capacity,
		ClearCapacity:       b.ClearCapacity,
		VolunteersNeeded:    b.VolunteersNeeded,
		ClearVolunteers:     b.ClearVolunteersNeeded,
		ConfirmationMessage: b.ConfirmationMessage,
	}
	if b.Date != nil {
		d, err := models.ParseDate(*b.Date)
		if err != nil {
			return nil, toHTTPError(h.log, "update_event", invalidField("date", err))
		}
		p.Date = &d
	}
	if b.StartTime != nil {
		t, err := models.ParseTimeOfDay(*b.StartTime)
		if err != nil {
			return nil, toHTTPError(h.log, "update_event", invalidField("start_time", err))
		}
		p.StartTime = &t
	}
	if b.EndTime != nil {
		if *b.EndTime == "" {
			p.ClearEndTime = true
		} else {
			t, err := models.ParseTimeOfDay(*b.EndTime)
			if err != nil {
				return nil, toHTTPError(h.log, "update_event", invalidField("end_time", err))
			}
			p.EndTime = &t
		}
	}

	e, err := h.catalog.Update(ctx, input.ID, p)
	if err != nil {
		return nil, toHTTPError(h.log, "update_event", err)
	}
	return &EventResponse{Body: viewEvent(*e)}, nil
}

type DeleteEventRequest struct {
	auth.AuthInput
	ID     string `path:"id"`
	Series bool   `query:"series" doc:"Delete every event in the recurring group"`
}

type DeleteEventResponse struct {
	Body struct {
		Deleted int `json:"deleted"`
	}
}

func (h *EventHandler) HandleDelete(ctx context.Context, input *DeleteEventRequest) (*DeleteEventResponse, error) {
	if _, err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	n, err := h.catalog.Delete(ctx, input.ID, input.Series)
	if err != nil {
		return nil, toHTTPError(h.log, "delete_event", err)
	}
	resp := &DeleteEventResponse{}
	resp.Body.Deleted = n
	return resp, nil
}

type EventActionRequest struct {
	auth.AuthInput
	ID string `path:"id"`
}

func (h *EventHandler) HandleReconcile(ctx context.Context, input *EventActionRequest) (*EventResponse, error) {
	if _, err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	e, err := h.engine.Reconcile(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(h.log, "reconcile", err)
	}
	return &EventResponse{Body: viewEvent(*e)}, nil
}

func (h *EventHandler) staff(ctx context.Context, in auth.AuthInput) (auth.Identity, error) {
	id, err := h.authHandler.Authorize(ctx, in)
	if err != nil {
		return id, err
	}
	return id, id.RequireAdmin()
}

func optionalDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, invalidField(field, err)
	}
	return d, nil
}

func invalidField(field string, err error) error {
	e := admission.NewError(admission.KindValidation, "%s: %v", field, err)
	e.Details = map[string]any{"field": field}
	return e
}
