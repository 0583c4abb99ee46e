package chat

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

// ProtocolViolation is returned by Reduce for an event the current state does not
// accept. It points at a caller bug rather than a runtime failure.
type ProtocolViolation struct {
	Event Event
	State State
}

func (v *ProtocolViolation) Error() string {
	return fmt.Sprintf("cannot dispatch %s %+v while in %s", kindOf(v.Event), v.Event, kindOf(v.State))
}

func kindOf(v any) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "chat.")
}

// Reduce returns the state that follows s after e.
//
// Failures move any state to DisplayingError. While in DisplayingError only Tick is
// honored; anything else is returned unchanged with a *ProtocolViolation. Other
// invalid pairs move to DisplayingError naming the event and return the violation.
func Reduce(cfg Config, s State, e Event) (State, error) {
	switch e := e.(type) {
	case TransportFailed:
		return DisplayingError{Reason: e.Reason, RetryIn: cfg.RetryCountdown}, nil
	case OperationFailed:
		return DisplayingError{Reason: e.Op + ": " + e.Reason, RetryIn: cfg.RetryCountdown}, nil
	}

	switch s := s.(type) {
	case Connecting:
		if _, ok := e.(ConnectionEstablished); ok {
			return DisplayingMessages{Paging: &Page{}}, nil
		}
	case DisplayingError:
		if _, ok := e.(Tick); !ok {
			return s, &ProtocolViolation{Event: e, State: s}
		}
		if s.RetryIn <= 0 {
			return Connecting{}, nil
		}
		s.RetryIn--
		return s, nil
	case DisplayingMessages:
		if next, ok := reduceDisplaying(cfg, s, e); ok {
			return next, nil
		}
	}

	v := &ProtocolViolation{Event: e, State: s}
	return DisplayingError{Reason: v.Error(), RetryIn: cfg.RetryCountdown}, v
}

func reduceDisplaying(cfg Config, s DisplayingMessages, e Event) (State, bool) {
	switch e := e.(type) {
	case SendRequested:
		if s.Outbound != nil {
			return nil, false
		}
		m := model.WithAuthor(e.Message, cfg.Me)
		s.Outbound = &m
	case SendAcknowledged:
		s.Outbound = nil
	case MessageReceived:
		if model.IndexOf(s.Messages, e.Message.ID) >= 0 {
			return s, true
		}
		s.Messages = append(slices.Clip(s.Messages), e.Message)
	case OlderPageRequested:
		if s.Paging != nil {
			return nil, false
		}
		page := Page{}
		if len(s.Messages) > 0 {
			page.Before = s.Messages[0].ID
		}
		s.Paging = &page
	case OlderPageLoaded:
		if s.Paging == nil {
			return nil, false
		}
		s.Messages = model.Prepend(e.Messages, s.Messages)
		s.Paging = nil
	case TypingReported:
		typing := maps.Clone(s.Typing)
		if typing == nil {
			typing = make(map[model.UserID]bool)
		}
		if e.Typing {
			typing[e.User] = true
		} else {
			delete(typing, e.User)
		}
		s.Typing = typing
	case AllRead:
		if len(s.Messages) == 0 {
			return s, true
		}
		id := s.Messages[len(s.Messages)-1].ID
		s.LastRead = &id
	case LastReadFetched:
		if s.LastRead == nil {
			id := e.ID
			s.LastRead = &id
		}
	case StarRequested:
		m := e.Message
		s.StarTarget = &m
	case StarAcknowledged:
		if s.StarTarget == nil {
			return s, true
		}
		if i := model.IndexOf(s.Messages, s.StarTarget.ID); i >= 0 {
			msgs := slices.Clone(s.Messages)
			msgs[i] = model.ToggleStar(msgs[i])
			s.Messages = msgs
		}
		s.StarTarget = nil
	default:
		return nil, false
	}
	return s, true
}
