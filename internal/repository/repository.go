package repository

import (
	"context"

	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

// Set bundles the repositories backed by one row store.
type Set struct {
	Events        *Events
	Registrations *Registrations
	Users         *Users
	Removals      *Removals
}

func New(store rowstore.Store) *Set {
	return &Set{
		Events:        NewEvents(store),
		Registrations: NewRegistrations(store),
		Users:         NewUsers(store),
		Removals:      NewRemovals(store),
	}
}

// EnsureTables creates missing tables and header rows.
func (s *Set) EnsureTables(ctx context.Context) error {
	for _, ensure := range []func(context.Context) error{
		s.Events.t.ensure,
		s.Registrations.t.ensure,
		s.Users.t.ensure,
		s.Removals.t.ensure,
	} {
		if err := ensure(ctx); err != nil {
			return err
		}
	}
	return nil
}
