// Package userloader resolves the users seen in a session through the
// directory cache, one lookup per pending id.
package userloader

import (
	"context"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

// Request is the resolution status of one user id: Pending, Resolved or Failed.
type Request interface{ request() }

type (
	Pending  struct{ ID model.UserID }
	Resolved struct{ User model.User }
	Failed   struct {
		ID     model.UserID
		Reason string
	}
)

func (Pending) request()  {}
func (Resolved) request() {}
func (Failed) request()   {}

// IDOf returns the user id r is about.
func IDOf(r Request) model.UserID {
	switch r := r.(type) {
	case Pending:
		return r.ID
	case Resolved:
		return r.User.ID
	case Failed:
		return r.ID
	}
	return model.NoAuthor
}

type State struct {
	Requests []Request
}

type Event interface{ event() }

type (
	// Track adds the ids not tracked yet.
	Track struct{ IDs []model.UserID }
	// Refresh replaces every request with fresh lookups of IDs.
	Refresh struct{ IDs []model.UserID }
	Retry   struct{ ID model.UserID }

	LookupSucceeded struct{ User model.User }
	LookupFailed    struct {
		ID     model.UserID
		Reason string
	}
)

func (Track) event()           {}
func (Refresh) event()         {}
func (Retry) event()           {}
func (LookupSucceeded) event() {}
func (LookupFailed) event()    {}

// Resolver is satisfied by *directory.Cache.
type Resolver interface {
	Resolve(ctx context.Context, id model.UserID) (model.User, error)
}

type Service interface {
	Run(ctx context.Context) error
	Dispatch(e Event)
	State() State
}
