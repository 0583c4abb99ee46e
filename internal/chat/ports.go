package chat

import (
	"context"
	"time"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

// State is one of Connecting, DisplayingMessages or DisplayingError.
type State interface{ state() }

type Connecting struct{}

// Page asks for the page of messages older than Before; an empty Before asks for
// the newest page.
type Page struct {
	Before model.MessageID
}

type DisplayingMessages struct {
	Messages []model.Message
	// nil when no page is loading
	Paging     *Page
	Outbound   *model.Message
	StarTarget *model.Message
	Typing     map[model.UserID]bool
	// nil until the last read message is known
	LastRead *model.MessageID
}

type DisplayingError struct {
	Reason  string
	RetryIn int
}

func (Connecting) state()         {}
func (DisplayingMessages) state() {}
func (DisplayingError) state()    {}

type Event interface{ event() }

type (
	ConnectionEstablished struct{}
	TransportFailed       struct{ Reason string }
	OperationFailed       struct{ Op, Reason string }
	Tick                  struct{}
	SendRequested         struct{ Message model.Message }
	SendAcknowledged      struct{}
	MessageReceived       struct{ Message model.Message }
	OlderPageRequested    struct{}
	OlderPageLoaded       struct{ Messages []model.Message }
	TypingReported        struct {
		User   model.UserID
		Typing bool
	}
	AllRead          struct{}
	LastReadFetched  struct{ ID model.MessageID }
	StarRequested    struct{ Message model.Message }
	StarAcknowledged struct{}
)

func (ConnectionEstablished) event() {}
func (TransportFailed) event()       {}
func (OperationFailed) event()       {}
func (Tick) event()                  {}
func (SendRequested) event()         {}
func (SendAcknowledged) event()      {}
func (MessageReceived) event()       {}
func (OlderPageRequested) event()    {}
func (OlderPageLoaded) event()       {}
func (TypingReported) event()        {}
func (AllRead) event()               {}
func (LastReadFetched) event()       {}
func (StarRequested) event()         {}
func (StarAcknowledged) event()      {}

type Config struct {
	Me model.UserID
	// seconds shown in DisplayingError before reconnecting
	RetryCountdown int
	// interval between two Tick events while in DisplayingError
	RetryTick time.Duration
}

// Gateway is the messaging backend: a realtime connection plus REST reads.
type Gateway interface {
	// Connect returns once the connection is established.
	Connect(ctx context.Context) (Conn, error)
	// FetchMessagesBefore returns the page of messages older than before, or the
	// newest page when before is empty.
	FetchMessagesBefore(ctx context.Context, me model.UserID, before model.MessageID) ([]model.Message, error)
	// FetchLastRead returns "" when nothing has been read yet.
	FetchLastRead(ctx context.Context, me model.UserID) (model.MessageID, error)
}

// Conn is an established realtime connection. It is owned by the connection
// effect and handed to the effects that write to it.
type Conn interface {
	// Listen starts delivering inbound events to h until the connection ends.
	Listen(h Handlers)
	SendMessage(ctx context.Context, m model.Message) error
	ReportTyping(ctx context.Context, user model.UserID, typing bool) error
	MarkRead(ctx context.Context, user model.UserID, id model.MessageID) error
	MarkStarred(ctx context.Context, user model.UserID, id model.MessageID) error
	Close() error
}

type Handlers struct {
	OnMessage func(model.Message)
	OnTyping  func(user model.UserID, typing bool)
	// OnDisconnected is not called after Close.
	OnDisconnected func(err error)
}

// Favorites receives the star toggles made in this session.
type Favorites interface {
	PublishFavorite(m model.Message)
}

// Service runs one chat session.
type Service interface {
	Run(ctx context.Context) error
	Dispatch(e Event)
	State() State
	// Watch must be called before Run.
	Watch(fn func(State))
	Me() model.UserID
}
