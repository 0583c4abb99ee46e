package userloader

import (
	"errors"
	"fmt"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

var ErrNotRetryable = errors.New("userloader: only failed lookups can be retried")

func Reduce(s State, e Event) (State, error) {
	switch e := e.(type) {
	case Track:
		next := append([]Request(nil), s.Requests...)
		for _, id := range e.IDs {
			if id != model.NoAuthor && indexOf(next, id) < 0 {
				next = append(next, Pending{ID: id})
			}
		}
		s.Requests = next
	case Refresh:
		s.Requests = nil
		return Reduce(s, Track{IDs: e.IDs})
	case Retry:
		i := indexOf(s.Requests, e.ID)
		if i < 0 {
			return s, fmt.Errorf("%w: user %d is not tracked", ErrNotRetryable, e.ID)
		}
		if _, ok := s.Requests[i].(Failed); !ok {
			return s, fmt.Errorf("%w: user %d", ErrNotRetryable, e.ID)
		}
		s.Requests = replace(s.Requests, i, Pending{ID: e.ID})
	case LookupSucceeded:
		s.Requests = settle(s.Requests, e.User.ID, Resolved{User: e.User})
	case LookupFailed:
		s.Requests = settle(s.Requests, e.ID, Failed{ID: e.ID, Reason: e.Reason})
	}
	return s, nil
}

// PendingIDs lists the ids waiting for a lookup.
func PendingIDs(s State) []model.UserID {
	var ids []model.UserID
	for _, r := range s.Requests {
		if p, ok := r.(Pending); ok {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func indexOf(reqs []Request, id model.UserID) int {
	for i, r := range reqs {
		if IDOf(r) == id {
			return i
		}
	}
	return -1
}

// settle records the outcome for id if it is still pending.
func settle(reqs []Request, id model.UserID, outcome Request) []Request {
	i := indexOf(reqs, id)
	if i < 0 {
		return reqs
	}
	if _, ok := reqs[i].(Pending); !ok {
		return reqs
	}
	return replace(reqs, i, outcome)
}

func replace(reqs []Request, i int, r Request) []Request {
	out := append([]Request(nil), reqs...)
	out[i] = r
	return out
}
