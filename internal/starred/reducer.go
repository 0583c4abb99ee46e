package starred

import (
	"errors"
	"slices"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

var ErrPageInFlight = errors.New("starred: a page is already loading")

// Reduce returns the board that follows s after e.
func Reduce(s State, e Event) (State, error) {
	switch e := e.(type) {
	case OlderRequested:
		if s.Paging != nil {
			return s, ErrPageInFlight
		}
		p := &Page{}
		if len(s.Messages) > 0 {
			p.Before = s.Messages[0].ID
		}
		s.Paging = p
		s.Err = ""
	case OlderLoaded:
		s.Messages = model.Prepend(e.Messages, s.Messages)
		s.Paging = nil
	case FavoriteToggled:
		s.Messages = toggle(s.Messages, e.Message)
	case Failed:
		s.Err = e.Reason
		s.Paging = nil
	}
	return s, nil
}

// toggle adds a newly starred message at the end or removes an unstarred one.
func toggle(msgs []model.Message, m model.Message) []model.Message {
	i := model.IndexOf(msgs, m.ID)
	switch {
	case m.Starred && i < 0:
		return append(slices.Clip(msgs), m)
	case !m.Starred && i >= 0:
		return slices.Delete(slices.Clone(msgs), i, i+1)
	}
	return msgs
}
