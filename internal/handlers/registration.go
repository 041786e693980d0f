package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/admission"
	"github.com/gdg-garage/community-events-api/internal/auth"
	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
)

type RegistrationHandler struct {
	engine        *admission.Engine
	registrations *repository.Registrations
	removals      *repository.Removals
	authHandler   *auth.AuthHandler
	log           *zap.Logger
}

func NewRegistrationHandler(engine *admission.Engine, repos *repository.Set, authHandler *auth.AuthHandler, log *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		engine:        engine,
		registrations: repos.Registrations,
		removals:      repos.Removals,
		authHandler:   authHandler,
		log:           log,
	}
}

type RegistrationRequest struct {
	auth.AuthInput
	EventID string `path:"id"`
	Body    struct {
		UserID              string                  `json:"user_id,omitempty" doc:"Staff only: register another member"`
		Type                models.RegistrationType `json:"registration_type,omitempty" enum:"participant,volunteer" default:"participant"`
		IsCaregiver         bool                    `json:"is_caregiver,omitempty" doc:"Registering on behalf of someone in your care"`
		ParticipantName     string                  `json:"participant_name,omitempty" maxLength:"200"`
		Email               string                  `json:"email,omitempty"`
		Phone               string                  `json:"phone,omitempty"`
		EmergencyContact    string                  `json:"emergency_contact,omitempty"`
		AccessibilityNeeds  string                  `json:"accessibility_needs,omitempty"`
		DietaryRequirements string                  `json:"dietary_requirements,omitempty" doc:"Food restrictions or allergies"`
		Notes               string                  `json:"notes,omitempty"`
	}
}

type RegistrationResponse struct {
	Status int
	Body   models.Registration
}

type RegistrationsResponse struct {
	Body []models.Registration
}

func (h *RegistrationHandler) request(ctx context.Context, input *RegistrationRequest) (admission.Request, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return admission.Request{}, err
	}
	if err := id.RequireActive(); err != nil {
		return admission.Request{}, err
	}
	userID := id.UserID
	if b := input.Body; b.UserID != "" && b.UserID != id.UserID {
		if err := id.RequireAdmin(); err != nil {
			return admission.Request{}, err
		}
		userID = b.UserID
	}
	b := input.Body
	typ := b.Type
	if typ == "" {
		typ = models.TypeParticipant
	}
	return admission.Request{
		EventID:             input.EventID,
		UserID:              userID,
		Type:                typ,
		IsCaregiver:         b.IsCaregiver,
		ParticipantName:     b.ParticipantName,
		Email:               b.Email,
		Phone:               b.Phone,
		EmergencyContact:    b.EmergencyContact,
		AccessibilityNeeds:  b.AccessibilityNeeds,
		DietaryRequirements: b.DietaryRequirements,
		Notes:               b.Notes,
	}, nil
}

func (h *RegistrationHandler) HandleRegister(ctx context.Context, input *RegistrationRequest) (*RegistrationResponse, error) {
	req, err := h.request(ctx, input)
	if err != nil {
		return nil, err
	}
	reg, err := h.engine.Admit(ctx, req)
	if err != nil {
		return nil, toHTTPError(h.log, "admit", err)
	}
	return &RegistrationResponse{Status: http.StatusCreated, Body: *reg}, nil
}

func (h *RegistrationHandler) HandleWaitlist(ctx context.Context, input *RegistrationRequest) (*RegistrationResponse, error) {
	req, err := h.request(ctx, input)
	if err != nil {
		return nil, err
	}
	reg, err := h.engine.RequestWaitlist(ctx, req)
	if err != nil {
		return nil, toHTTPError(h.log, "request_waitlist", err)
	}
	return &RegistrationResponse{Status: http.StatusCreated, Body: *reg}, nil
}

type EventRegistrationsRequest struct {
	auth.AuthInput
	EventID string        `path:"id"`
	Status  models.Status `query:"status" enum:"registered,attended,absent,cancelled,waitlist,rejected"`
}

// HandleEventRegistrations lists an event's registrations for staff, waitlist entries
// ordered by position.
func (h *RegistrationHandler) HandleEventRegistrations(ctx context.Context, input *EventRegistrationsRequest) (*RegistrationsResponse, error) {
	if err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	regs, err := h.registrations.ListByEvent(ctx, input.EventID)
	if err != nil {
		return nil, toHTTPError(h.log, "list_registrations", err)
	}
	out := regs[:0]
	for _, r := range regs {
		if input.Status == "" || r.Status == input.Status {
			out = append(out, r)
		}
	}
	sortRegistrations(out)
	return &RegistrationsResponse{Body: out}, nil
}

type MyRegistrationsRequest struct {
	auth.AuthInput
}

func (h *RegistrationHandler) HandleMine(ctx context.Context, input *MyRegistrationsRequest) (*RegistrationsResponse, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	regs, err := h.registrations.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, toHTTPError(h.log, "my_registrations", err)
	}
	sortRegistrations(regs)
	return &RegistrationsResponse{Body: regs}, nil
}

func (h *RegistrationHandler) HandlePromote(ctx context.Context, input *EventActionRequest) (*RegistrationResponse, error) {
	if err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	reg, err := h.engine.Promote(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(h.log, "promote", err)
	}
	return &RegistrationResponse{Status: http.StatusOK, Body: *reg}, nil
}

type RegistrationIDRequest struct {
	auth.AuthInput
	ID string `path:"id"`
}

func (h *RegistrationHandler) HandleApprove(ctx context.Context, input *RegistrationIDRequest) (*RegistrationResponse, error) {
	if err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	reg, err := h.engine.ApproveWaitlist(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(h.log, "approve_waitlist", err)
	}
	return &RegistrationResponse{Status: http.StatusOK, Body: *reg}, nil
}

func (h *RegistrationHandler) HandleReject(ctx context.Context, input *RegistrationIDRequest) (*RegistrationResponse, error) {
	if err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	reg, err := h.engine.RejectWaitlist(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(h.log, "reject_waitlist", err)
	}
	return &RegistrationResponse{Status: http.StatusOK, Body: *reg}, nil
}

type SetStatusRequest struct {
	auth.AuthInput
	ID   string `path:"id"`
	Body struct {
		Status models.Status `json:"status" enum:"registered,attended,absent,cancelled,waitlist,rejected"`
	}
}

// HandleSetStatus lets members cancel their own registrations. Every other change is staff only.
func (h *RegistrationHandler) HandleSetStatus(ctx context.Context, input *SetStatusRequest) (*RegistrationResponse, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	if input.Body.Status == models.StatusCancelled {
		reg, err := h.registrations.Get(ctx, input.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, toHTTPError(h.log, "set_status", admission.NewError(admission.KindRegistrationNotFound, "registration %s not found", input.ID))
		}
		if err != nil {
			return nil, toHTTPError(h.log, "set_status", err)
		}
		if err := id.RequireSelfOrStaff(reg.UserID); err != nil {
			return nil, err
		}
	} else if err := id.RequireAdmin(); err != nil {
		return nil, err
	}

	reg, err := h.engine.SetStatus(ctx, input.ID, input.Body.Status)
	if err != nil {
		return nil, toHTTPError(h.log, "set_status", err)
	}
	return &RegistrationResponse{Status: http.StatusOK, Body: *reg}, nil
}

type RemoveRegistrationRequest struct {
	auth.AuthInput
	ID     string `path:"id"`
	Reason string `query:"reason" maxLength:"500"`
}

type RemovalResponse struct {
	Body models.RemovalHistory
}

func (h *RegistrationHandler) HandleRemove(ctx context.Context, input *RemoveRegistrationRequest) (*RemovalResponse, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	entry, err := h.engine.Remove(ctx, input.ID, id.UserID, input.Reason)
	if err != nil {
		return nil, toHTTPError(h.log, "remove", err)
	}
	return &RemovalResponse{Body: *entry}, nil
}

type HistoryRequest struct {
	auth.AuthInput
	EventID string `query:"event_id"`
	UserID  string `query:"user_id"`
}

type HistoryResponse struct {
	Body []models.RemovalHistory
}

// HandleHistory returns archived removals, newest first.
func (h *RegistrationHandler) HandleHistory(ctx context.Context, input *HistoryRequest) (*HistoryResponse, error) {
	if err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	entries, err := h.removals.List(ctx)
	if err != nil {
		return nil, toHTTPError(h.log, "removal_history", err)
	}
	out := entries[:0]
	for _, e := range entries {
		if input.EventID != "" && e.EventID != input.EventID {
			continue
		}
		if input.UserID != "" && e.UserID != input.UserID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RemovedAt.After(out[j].RemovedAt) })
	return &HistoryResponse{Body: out}, nil
}

func (h *RegistrationHandler) staff(ctx context.Context, in auth.AuthInput) error {
	id, err := h.authHandler.Authorize(ctx, in)
	if err != nil {
		return err
	}
	return id.RequireAdmin()
}

// sortRegistrations orders by registration time, with the approved waitlist last in line order.
func sortRegistrations(regs []models.Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		a, b := regs[i], regs[j]
		if a.OnActiveWaitlist() != b.OnActiveWaitlist() {
			return b.OnActiveWaitlist()
		}
		if a.OnActiveWaitlist() {
			return *a.WaitlistPosition < *b.WaitlistPosition
		}
		return a.RegisteredAt.Before(b.RegisteredAt)
	})
}
