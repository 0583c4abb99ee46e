package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/chat-sync/internal/feedback"
	"github.com/Vovarama1992/chat-sync/internal/model"
)

type service struct {
	cfg  Config
	gw   Gateway
	favs Favorites
	log  *zap.Logger
	sys  *feedback.System[State, Event]
	link link
}

func NewService(cfg Config, gw Gateway, favs Favorites, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RetryTick <= 0 {
		cfg.RetryTick = time.Second
	}
	log = log.Named("chat")

	s := &service{cfg: cfg, gw: gw, favs: favs, log: log}
	s.sys = feedback.NewSystem[State, Event]("chat", Connecting{},
		func(st State, e Event) (State, error) { return Reduce(cfg, st, e) }, log)

	opt := feedback.WithLogger(log)
	s.sys.Attach(
		feedback.NewSingle("retry-timer", retryQuery, s.retryTimer, opt),
		feedback.NewSingle("connection", connectionQuery, s.connect, opt),
		feedback.NewSingle("send", outboundQuery, connected(s, "send", s.send), opt),
		feedback.NewSingle("older-page", pagingQuery, s.fetchPage, opt),
		feedback.NewSingle("typing", s.typingQuery, connected(s, "report typing", s.reportTyping), opt),
		feedback.NewSingle("last-read", lastReadQuery, s.lastRead, opt),
		feedback.NewSingle("star", starQuery, connected(s, "star", s.star), opt),
	)
	return s
}

func (s *service) Run(ctx context.Context) error {
	s.log.Info("session started", zap.Int64("me", int64(s.cfg.Me)))
	defer s.log.Info("session stopped")
	return s.sys.Run(ctx)
}

func (s *service) Dispatch(e Event)     { s.sys.Dispatch(e) }
func (s *service) State() State         { return s.sys.State() }
func (s *service) Watch(fn func(State)) { s.sys.Watch(fn) }
func (s *service) Me() model.UserID     { return s.cfg.Me }

// queries

func retryQuery(st State) (int, bool) {
	e, ok := st.(DisplayingError)
	return e.RetryIn, ok
}

func connectionQuery(st State) (struct{}, bool) {
	switch st.(type) {
	case Connecting, DisplayingMessages:
		return struct{}{}, true
	}
	return struct{}{}, false
}

func outboundQuery(st State) (model.Message, bool) {
	d, ok := st.(DisplayingMessages)
	if !ok || d.Outbound == nil {
		return model.Message{}, false
	}
	return *d.Outbound, true
}

func pagingQuery(st State) (Page, bool) {
	d, ok := st.(DisplayingMessages)
	if !ok || d.Paging == nil {
		return Page{}, false
	}
	return *d.Paging, true
}

func (s *service) typingQuery(st State) (bool, bool) {
	d, ok := st.(DisplayingMessages)
	if !ok {
		return false, false
	}
	return d.Typing[s.cfg.Me], true
}

type readIntent struct {
	Fetch bool
	ID    model.MessageID
}

func lastReadQuery(st State) (readIntent, bool) {
	d, ok := st.(DisplayingMessages)
	if !ok {
		return readIntent{}, false
	}
	if d.LastRead == nil {
		return readIntent{Fetch: true}, true
	}
	return readIntent{ID: *d.LastRead}, true
}

// starQuery resolves the star target to the held entry so the toggle is computed
// from the flag the user actually sees.
func starQuery(st State) (model.Message, bool) {
	d, ok := st.(DisplayingMessages)
	if !ok || d.StarTarget == nil {
		return model.Message{}, false
	}
	if i := model.IndexOf(d.Messages, d.StarTarget.ID); i >= 0 {
		return d.Messages[i], true
	}
	return *d.StarTarget, true
}

// effects

func (s *service) retryTimer(ctx context.Context, _ int) (feedback.Cleanup, error) {
	t := time.AfterFunc(s.cfg.RetryTick, func() { s.sys.Emit(ctx, Tick{}) })
	return func() { t.Stop() }, nil
}

func (s *service) connect(ctx context.Context, _ struct{}) (feedback.Cleanup, error) {
	go func() {
		conn, err := s.gw.Connect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("connect failed", zap.Error(err))
				s.sys.Emit(ctx, TransportFailed{Reason: err.Error()})
			}
			return
		}
		if !s.link.set(ctx, conn) {
			_ = conn.Close()
			return
		}
		s.log.Info("connected")
		s.sys.Emit(ctx, ConnectionEstablished{})
		conn.Listen(Handlers{
			OnMessage: func(m model.Message) { s.sys.Emit(ctx, MessageReceived{Message: m}) },
			OnTyping: func(user model.UserID, typing bool) {
				// the composer reports our own typing
				if user == s.cfg.Me {
					return
				}
				s.sys.Emit(ctx, TypingReported{User: user, Typing: typing})
			},
			OnDisconnected: func(err error) {
				s.log.Warn("disconnected", zap.Error(err))
				s.sys.Emit(ctx, TransportFailed{Reason: "disconnected: " + err.Error()})
			},
		})
	}()
	return func() {
		if conn := s.link.clear(); conn != nil {
			if err := conn.Close(); err != nil {
				s.log.Debug("close connection", zap.Error(err))
			}
		}
	}, nil
}

func (s *service) send(ctx context.Context, conn Conn, m model.Message) (Event, error) {
	if err := conn.SendMessage(ctx, m); err != nil {
		return nil, err
	}
	return SendAcknowledged{}, nil
}

func (s *service) reportTyping(ctx context.Context, conn Conn, typing bool) (Event, error) {
	return nil, conn.ReportTyping(ctx, s.cfg.Me, typing)
}

func (s *service) star(ctx context.Context, conn Conn, m model.Message) (Event, error) {
	if err := conn.MarkStarred(ctx, s.cfg.Me, m.ID); err != nil {
		return nil, err
	}
	if s.favs != nil {
		s.favs.PublishFavorite(model.ToggleStar(m))
	}
	return StarAcknowledged{}, nil
}

func (s *service) fetchPage(ctx context.Context, p Page) (feedback.Cleanup, error) {
	go func() {
		msgs, err := s.gw.FetchMessagesBefore(ctx, s.cfg.Me, p.Before)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.sys.Emit(ctx, OperationFailed{Op: "fetch messages", Reason: err.Error()})
			return
		}
		s.sys.Emit(ctx, OlderPageLoaded{Messages: msgs})
	}()
	return feedback.Noop, nil
}

func (s *service) lastRead(ctx context.Context, q readIntent) (feedback.Cleanup, error) {
	if !q.Fetch {
		return connected(s, "mark read", func(ctx context.Context, conn Conn, id model.MessageID) (Event, error) {
			return nil, conn.MarkRead(ctx, s.cfg.Me, id)
		})(ctx, q.ID)
	}
	go func() {
		id, err := s.gw.FetchLastRead(ctx, s.cfg.Me)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err != nil:
			s.sys.Emit(ctx, OperationFailed{Op: "fetch last read", Reason: err.Error()})
		case id != "":
			s.sys.Emit(ctx, LastReadFetched{ID: id})
		}
	}()
	return feedback.Noop, nil
}

// connected adapts a write on the live connection into an effect. The connection
// is taken from the connection effect when the effect starts; the returned event,
// if any, is emitted on success.
func connected[Q any](s *service, op string, run func(ctx context.Context, conn Conn, q Q) (Event, error)) feedback.Effect[Q] {
	return func(ctx context.Context, q Q) (feedback.Cleanup, error) {
		conn := s.link.get()
		if conn == nil {
			s.sys.Emit(ctx, OperationFailed{Op: op, Reason: "not connected"})
			return feedback.Noop, nil
		}
		go func() {
			ev, err := run(ctx, conn, q)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.log.Warn("operation failed", zap.String("op", op), zap.Error(err))
				s.sys.Emit(ctx, OperationFailed{Op: op, Reason: err.Error()})
				return
			}
			if ev != nil {
				s.sys.Emit(ctx, ev)
			}
		}()
		return feedback.Noop, nil
	}
}

// link holds the connection owned by the running connection effect.
type link struct {
	mu   sync.Mutex
	conn Conn
}

// set stores conn unless the effect that dialed it has already been stopped.
func (l *link) set(ctx context.Context, conn Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	l.conn = conn
	return true
}

func (l *link) get() Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

func (l *link) clear() Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	conn := l.conn
	l.conn = nil
	return conn
}
