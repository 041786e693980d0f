// Package admission decides whether a registration may be created and keeps the cached event
// counters, the waitlist order and registration statuses consistent while doing so.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gdg-garage/community-events-api/internal/keylock"
	"github.com/gdg-garage/community-events-api/internal/metrics"
	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
)

// Notifier receives fire-and-forget events. Implementations must not block.
type Notifier interface {
	RegistrationConfirmed(event models.Event, reg models.Registration, user models.User)
	WaitlistRequested(event models.Event, reg models.Registration)
	Promoted(event models.Event, reg models.Registration)
}

// Limiter throttles admission attempts per user.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Deps struct {
	Events        *repository.Events
	Registrations *repository.Registrations
	Users         *repository.Users
	Removals      *repository.Removals
	Locks         *keylock.Locker
	Notifier      Notifier
	Limiter       Limiter
	Logger        *zap.Logger
	Now           func() time.Time
}

type Engine struct {
	events        *repository.Events
	registrations *repository.Registrations
	users         *repository.Users
	removals      *repository.Removals
	locks         *keylock.Locker
	notifier      Notifier
	limiter       Limiter
	log           *zap.Logger
	now           func() time.Time
	validate      *validator.Validate
}

func New(d Deps) *Engine {
	e := &Engine{
		events:        d.Events,
		registrations: d.Registrations,
		users:         d.Users,
		removals:      d.Removals,
		locks:         d.Locks,
		notifier:      d.Notifier,
		limiter:       d.Limiter,
		log:           d.Logger,
		now:           d.Now,
		validate:      validator.New(),
	}
	if e.locks == nil {
		e.locks = keylock.New()
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Request is a registration attempt by an account holder. For caregiver registrations the
// account holder registers ParticipantName and the registration counts against the account.
type Request struct {
	EventID             string                  `validate:"required"`
	UserID              string                  `validate:"required"`
	Type                models.RegistrationType `validate:"required,oneof=participant volunteer"`
	IsCaregiver         bool
	ParticipantName     string `validate:"required_if=IsCaregiver true,max=200"`
	Email               string `validate:"omitempty,email"`
	Phone               string `validate:"max=50"`
	EmergencyContact    string `validate:"max=500"`
	AccessibilityNeeds  string `validate:"max=1000"`
	DietaryRequirements string `validate:"max=1000"`
	Notes               string `validate:"max=1000"`
}

// snapshot is the state an admission decision is made against.
type snapshot struct {
	event         models.Event
	user          models.User
	events        map[string]models.Event
	registrations []models.Registration
}

// Admit registers the user for the event if every admission rule passes. On success the
// registration row and the event counter are both written; on failure neither is.
func (e *Engine) Admit(ctx context.Context, req Request) (*models.Registration, error) {
	reg, err := e.admit(ctx, req)
	e.observe("admit", err)
	if err == nil {
		metrics.RecordAdmission(string(reg.Type))
	}
	return reg, err
}

func (e *Engine) admit(ctx context.Context, req Request) (*models.Registration, error) {
	if err := e.checkRequest(req); err != nil {
		return nil, err
	}
	if err := e.throttle(ctx, req.UserID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(keylock.EventKey(req.EventID), keylock.UserKey(req.UserID))
	defer unlock()

	s, err := e.load(ctx, req.EventID, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkMember(s.user); err != nil {
		return nil, err
	}
	if err := checkDuplicate(s.registrations, req.UserID, req.EventID, ""); err != nil {
		return nil, err
	}
	if err := checkCapacity(s.event, req.Type); err != nil {
		return nil, err
	}
	if err := checkConflict(s, req.UserID); err != nil {
		return nil, err
	}
	if req.Type == models.TypeParticipant {
		if err := checkQuota(s, req.UserID); err != nil {
			return nil, err
		}
	}

	reg := e.newRegistration(req, s.user, models.StatusRegistered)
	if err := e.registrations.Create(ctx, reg); err != nil {
		return nil, fmt.Errorf("append registration: %w", err)
	}
	event := s.event
	adjustSpots(&event, reg.Type, 1)
	event.UpdatedAt = e.now().UTC()
	if err := e.events.Update(ctx, event); err != nil {
		if rbErr := e.registrations.Delete(context.WithoutCancel(ctx), reg.ID); rbErr != nil {
			e.log.Error("rollback of appended registration failed",
				zap.String("registration_id", reg.ID), zap.Error(rbErr))
		}
		return nil, fmt.Errorf("update event counters: %w", err)
	}

	e.notifier.RegistrationConfirmed(event, reg, s.user)
	return &reg, nil
}

// RequestWaitlist records a pending waitlist request for a full event. Staff must approve it
// before it gets a position.
func (e *Engine) RequestWaitlist(ctx context.Context, req Request) (*models.Registration, error) {
	reg, err := e.requestWaitlist(ctx, req)
	e.observe("request_waitlist", err)
	return reg, err
}

func (e *Engine) requestWaitlist(ctx context.Context, req Request) (*models.Registration, error) {
	if req.Type == "" {
		req.Type = models.TypeParticipant
	}
	if err := e.checkRequest(req); err != nil {
		return nil, err
	}
	if req.Type != models.TypeParticipant {
		return nil, newError(KindValidation, "only participants can join a waitlist")
	}
	if err := e.throttle(ctx, req.UserID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(keylock.EventKey(req.EventID), keylock.UserKey(req.UserID))
	defer unlock()

	s, err := e.load(ctx, req.EventID, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkMember(s.user); err != nil {
		return nil, err
	}
	if err := checkDuplicate(s.registrations, req.UserID, req.EventID, ""); err != nil {
		return nil, err
	}
	if !s.event.IsFull() {
		return nil, newError(KindValidation, "%s still has places; register instead", s.event.Title)
	}
	if err := checkQuota(s, req.UserID); err != nil {
		return nil, err
	}

	reg := e.newRegistration(req, s.user, models.StatusWaitlist)
	if err := e.registrations.Create(ctx, reg); err != nil {
		return nil, fmt.Errorf("append waitlist request: %w", err)
	}
	e.notifier.WaitlistRequested(s.event, reg)
	return &reg, nil
}

func (e *Engine) checkRequest(req Request) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newError(KindValidation, "invalid request: %v", err)
	}
	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		names = append(names, fe.Field())
	}
	return newError(KindValidation, "invalid fields: %s", strings.Join(names, ", ")).with("fields", fields)
}

func (e *Engine) throttle(ctx context.Context, userID string) error {
	if e.limiter == nil {
		return nil
	}
	ok, err := e.limiter.Allow(ctx, "admission:"+userID)
	if err != nil {
		// fail open
		e.log.Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return newError(KindRateLimited, "too many registration attempts, try again later")
	}
	return nil
}

// load reads the candidate event, the user and every event and registration in parallel.
func (e *Engine) load(ctx context.Context, eventID, userID string) (*snapshot, error) {
	var (
		events []models.Event
		user   *models.User
		regs   []models.Registration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = e.events.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = e.users.Get(gctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindValidation, "user %s is not a registered member", userID)
		}
		return err
	})
	g.Go(func() error {
		var err error
		regs, err = e.registrations.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &snapshot{user: *user, registrations: regs, events: make(map[string]models.Event, len(events))}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	ev, ok := s.events[eventID]
	if !ok {
		return nil, newError(KindEventNotFound, "event %s not found", eventID)
	}
	s.event = ev
	return s, nil
}

func (e *Engine) newRegistration(req Request, user models.User, status models.Status) models.Registration {
	now := e.now().UTC()
	name := user.Name
	participant := strings.TrimSpace(req.ParticipantName)
	if !req.IsCaregiver && participant == "" {
		participant = name
	}
	email := req.Email
	if email == "" {
		email = user.Email
	}
	phone := req.Phone
	if phone == "" {
		phone = user.Phone
	}
	return models.Registration{
		ID:                  uuid.NewString(),
		EventID:             req.EventID,
		UserID:              req.UserID,
		UserName:            name,
		Type:                req.Type,
		Status:              status,
		IsCaregiver:         req.IsCaregiver,
		ParticipantName:     participant,
		Email:               email,
		Phone:               phone,
		EmergencyContact:    req.EmergencyContact,
		AccessibilityNeeds:  req.AccessibilityNeeds,
		DietaryRequirements: req.DietaryRequirements,
		Notes:               req.Notes,
		RegisteredAt:        now,
		UpdatedAt:           now,
	}
}

func checkMember(u models.User) error {
	if u.CanRegister() {
		return nil
	}
	return newError(KindValidation, "member %s is %s and cannot register", u.ID, u.Status).
		with("userStatus", string(u.Status))
}

// checkDuplicate rejects a second live registration of the user for the event. exceptID
// excludes the registration being reinstated.
func checkDuplicate(regs []models.Registration, userID, eventID, exceptID string) error {
	for _, r := range regs {
		if r.UserID != userID || r.EventID != eventID || r.ID == exceptID {
			continue
		}
		if r.Status != models.StatusCancelled {
			return newError(KindDuplicateRegistration, "already registered for this event").
				with("registrationId", r.ID).
				with("status", string(r.Status))
		}
	}
	return nil
}

func checkConflict(s *snapshot, userID string) error {
	var booked []models.Event
	for _, r := range s.registrations {
		if r.UserID != userID || !r.Status.HoldsSpot() {
			continue
		}
		if ev, ok := s.events[r.EventID]; ok {
			booked = append(booked, ev)
		}
	}
	other, ok := FindConflict(s.event, booked)
	if !ok {
		return nil
	}
	return newError(KindTimeConflict, "overlaps with %s (%s-%s)", other.Title, other.StartTime, other.End()).
		with("conflictingEventId", other.ID).
		with("conflictingEventTitle", other.Title)
}

func checkQuota(s *snapshot, userID string) error {
	limit, limited := WeeklyLimit(s.user.MembershipType)
	if !limited {
		return nil
	}
	week := WeekOf(s.event.Date)
	if WeeklyParticipantCount(userID, week, s.registrations, s.events) < limit {
		return nil
	}
	return newError(KindWeeklyQuotaExceeded, "weekly limit of %d events reached for %s membership", limit, s.user.MembershipType).
		with("weekStart", week.Start.Format(models.DateLayout)).
		with("weekEnd", week.End.Format(models.DateLayout)).
		with("limit", limit)
}

// checkStanding re-runs the conflict and quota rules for an existing registration that is
// about to take a spot, ignoring the registration itself. It takes the user lock and returns
// its release; the caller already holds the event lock.
func (e *Engine) checkStanding(ctx context.Context, reg models.Registration) (func(), error) {
	unlock := e.locks.Lock(keylock.UserKey(reg.UserID))
	s, err := e.load(ctx, reg.EventID, reg.UserID)
	if err != nil {
		unlock()
		return nil, err
	}
	others := make([]models.Registration, 0, len(s.registrations))
	for _, r := range s.registrations {
		if r.ID != reg.ID {
			others = append(others, r)
		}
	}
	s.registrations = others
	if err := checkConflict(s, reg.UserID); err != nil {
		unlock()
		return nil, err
	}
	if reg.Type == models.TypeParticipant {
		if err := checkQuota(s, reg.UserID); err != nil {
			unlock()
			return nil, err
		}
	}
	return unlock, nil
}

// observe records the outcome of an operation. Rule violations are expected and stay at
// debug level.
func (e *Engine) observe(op string, err error) {
	kind := CanonicalKind(err)
	metrics.RecordOperation(op, string(kind))
	switch {
	case err == nil:
	case kind == KindUpstream:
		e.log.Error("operation failed", zap.String("operation", op), zap.Error(err))
	default:
		e.log.Debug("operation rejected", zap.String("operation", op), zap.String("kind", string(kind)), zap.Error(err))
	}
}

type nopNotifier struct{}

func (nopNotifier) RegistrationConfirmed(models.Event, models.Registration, models.User) {}
func (nopNotifier) WaitlistRequested(models.Event, models.Registration)                 {}
func (nopNotifier) Promoted(models.Event, models.Registration)                          {}
