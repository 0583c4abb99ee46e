// Package starred keeps the board of starred messages in sync with the
// gateway and with star toggles made in the chat session.
package starred

import (
	"context"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

type Page struct {
	// Before is empty for the newest page.
	Before model.MessageID `json:"before,omitempty"`
}

type State struct {
	Messages []model.Message `json:"messages"`
	// Paging is set while a page is loading.
	Paging *Page  `json:"paging,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Initial is the board before anything is loaded: empty and fetching the newest
// page.
func Initial() State {
	return State{Messages: []model.Message{}, Paging: &Page{}}
}

type Event interface{ event() }

type (
	OlderRequested  struct{}
	OlderLoaded     struct{ Messages []model.Message }
	FavoriteToggled struct{ Message model.Message }
	Failed          struct{ Reason string }
)

func (OlderRequested) event()  {}
func (OlderLoaded) event()     {}
func (FavoriteToggled) event() {}
func (Failed) event()          {}

// Source is the part of the messaging gateway the board reads from.
type Source interface {
	FetchStarred(ctx context.Context, me model.UserID, before model.MessageID) ([]model.Message, error)
	// Favorites streams star toggles until ctx ends.
	Favorites(ctx context.Context) <-chan model.Message
}

type Service interface {
	Run(ctx context.Context) error
	Dispatch(e Event)
	State() State
}
