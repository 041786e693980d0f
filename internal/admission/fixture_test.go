package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

var errInjected = errors.New("injected store failure")

// flakyStore fails writes to the named tables.
type flakyStore struct {
	rowstore.Store
	mu    sync.Mutex
	fail  map[string]bool
	delay time.Duration
}

func (s *flakyStore) failing(op, table string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail[op+":"+table]
}

func (s *flakyStore) inject(op, table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail == nil {
		s.fail = make(map[string]bool)
	}
	s.fail[op+":"+table] = true
}

func (s *flakyStore) UpdateRange(ctx context.Context, table string, rowIndex int, values []string) error {
	if s.failing("update", table) {
		return errInjected
	}
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	time.Sleep(delay)
	return s.Store.UpdateRange(ctx, table, rowIndex, values)
}

func (s *flakyStore) DeleteRow(ctx context.Context, table string, rowIndex int) error {
	if s.failing("delete", table) {
		return errInjected
	}
	return s.Store.DeleteRow(ctx, table, rowIndex)
}

func (s *flakyStore) AppendRow(ctx context.Context, table string, row []string) error {
	if s.failing("append", table) {
		return errInjected
	}
	return s.Store.AppendRow(ctx, table, row)
}

func (s *flakyStore) failUpdates(table string) { s.inject("update", table) }

// slowUpdates widens the gap between locating a row and writing it.
func (s *flakyStore) slowUpdates(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *flakyStore) failDeletes(table string) { s.inject("delete", table) }

func (s *flakyStore) failAppends(table string) { s.inject("append", table) }

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []string
	requested []string
	promoted  []string
}

func (n *recordingNotifier) RegistrationConfirmed(_ models.Event, reg models.Registration, _ models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, reg.ID)
}

func (n *recordingNotifier) WaitlistRequested(_ models.Event, reg models.Registration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, reg.ID)
}

func (n *recordingNotifier) Promoted(_ models.Event, reg models.Registration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.promoted = append(n.promoted, reg.ID)
}

type stubLimiter struct {
	allow bool
	err   error
}

func (l stubLimiter) Allow(context.Context, string) (bool, error) { return l.allow, l.err }

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *flakyStore
	repos  *repository.Set
	engine *Engine
	notes  *recordingNotifier
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	ctx := context.Background()
	store := &flakyStore{Store: rowstore.NewMemory()}
	repos := repository.New(store)
	require.NoError(t, repos.EnsureTables(ctx))
	notes := &recordingNotifier{}
	deps := Deps{
		Events:        repos.Events,
		Registrations: repos.Registrations,
		Users:         repos.Users,
		Removals:      repos.Removals,
		Notifier:      notes,
		Now:           func() time.Time { return fixedNow },
	}
	for _, o := range opts {
		o(&deps)
	}
	return &fixture{t: t, ctx: ctx, store: store, repos: repos, engine: New(deps), notes: notes}
}

func (f *fixture) addUser(id string, membership models.MembershipType) models.User {
	f.t.Helper()
	u := models.User{
		ID:             id,
		Name:           "User " + id,
		Email:          id + "@example.com",
		Role:           models.RoleParticipant,
		Status:         models.UserActive,
		MembershipType: membership,
	}
	require.NoError(f.t, f.repos.Users.Create(f.ctx, u))
	return u
}

type eventOpt func(*models.Event)

func withCapacity(n int) eventOpt { return func(e *models.Event) { e.Capacity = &n } }

func withVolunteers(n int) eventOpt { return func(e *models.Event) { e.VolunteersNeeded = &n } }

func withoutEnd() eventOpt { return func(e *models.Event) { e.EndTime = nil } }

func (f *fixture) addEvent(id, date, start, end string, opts ...eventOpt) models.Event {
	f.t.Helper()
	d, err := models.ParseDate(date)
	require.NoError(f.t, err)
	s, err := models.ParseTimeOfDay(start)
	require.NoError(f.t, err)
	en, err := models.ParseTimeOfDay(end)
	require.NoError(f.t, err)
	e := models.Event{ID: id, Title: "Event " + id, Date: d, StartTime: s, EndTime: &en, Location: "Hall"}
	for _, o := range opts {
		o(&e)
	}
	require.NoError(f.t, f.repos.Events.Create(f.ctx, e))
	return e
}

func (f *fixture) event(id string) models.Event {
	f.t.Helper()
	e, err := f.repos.Events.Get(f.ctx, id)
	require.NoError(f.t, err)
	return *e
}

func (f *fixture) registration(id string) models.Registration {
	f.t.Helper()
	r, err := f.repos.Registrations.Get(f.ctx, id)
	require.NoError(f.t, err)
	return *r
}

func (f *fixture) history() []models.RemovalHistory {
	f.t.Helper()
	h, err := f.repos.Removals.List(f.ctx)
	require.NoError(f.t, err)
	return h
}

func (f *fixture) admit(userID, eventID string, typ models.RegistrationType) (*models.Registration, error) {
	return f.engine.Admit(f.ctx, Request{EventID: eventID, UserID: userID, Type: typ})
}

func (f *fixture) mustAdmit(userID, eventID string) models.Registration {
	f.t.Helper()
	reg, err := f.admit(userID, eventID, models.TypeParticipant)
	require.NoError(f.t, err)
	return *reg
}

// waitlisted requests and approves a waitlist place for the user.
func (f *fixture) waitlisted(userID, eventID string) models.Registration {
	f.t.Helper()
	req, err := f.engine.RequestWaitlist(f.ctx, Request{EventID: eventID, UserID: userID, Type: models.TypeParticipant})
	require.NoError(f.t, err)
	reg, err := f.engine.ApproveWaitlist(f.ctx, req.ID)
	require.NoError(f.t, err)
	return *reg
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, CanonicalKind(err), "error: %v", err)
}
