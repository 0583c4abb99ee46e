package userloader

import (
	"context"

	"go.uber.org/zap"

	"github.com/Vovarama1992/chat-sync/internal/feedback"
	"github.com/Vovarama1992/chat-sync/internal/model"
)

type service struct {
	users Resolver
	log   *zap.Logger
	sys   *feedback.System[State, Event]
}

func NewService(users Resolver, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("userloader")

	s := &service{users: users, log: log}
	s.sys = feedback.NewSystem[State, Event]("userloader", State{}, Reduce, log)
	s.sys.Attach(feedback.NewSet("lookups", PendingIDs, s.resolve, feedback.WithLogger(log)))
	return s
}

func (s *service) Run(ctx context.Context) error { return s.sys.Run(ctx) }
func (s *service) Dispatch(e Event)              { s.sys.Dispatch(e) }
func (s *service) State() State                  { return s.sys.State() }

func (s *service) resolve(ctx context.Context, id model.UserID) (feedback.Cleanup, error) {
	go func() {
		u, err := s.users.Resolve(ctx, id)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Debug("lookup failed", zap.Int64("user", int64(id)), zap.Error(err))
			s.sys.Emit(ctx, LookupFailed{ID: id, Reason: err.Error()})
			return
		}
		s.sys.Emit(ctx, LookupSucceeded{User: u})
	}()
	return feedback.Noop, nil
}
