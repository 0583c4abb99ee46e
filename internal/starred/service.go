package starred

import (
	"context"

	"go.uber.org/zap"

	"github.com/Vovarama1992/chat-sync/internal/feedback"
	"github.com/Vovarama1992/chat-sync/internal/model"
)

type service struct {
	me  model.UserID
	src Source
	log *zap.Logger
	sys *feedback.System[State, Event]
}

func NewService(me model.UserID, src Source, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("starred")

	s := &service{me: me, src: src, log: log}
	s.sys = feedback.NewSystem[State, Event]("starred", Initial(), Reduce, log)

	opt := feedback.WithLogger(log)
	s.sys.Attach(
		feedback.NewSingle("starred-page", pagingQuery, s.fetchPage, opt),
		feedback.NewSingle("favorites", always, s.subscribe, opt),
	)
	return s
}

func (s *service) Run(ctx context.Context) error { return s.sys.Run(ctx) }
func (s *service) Dispatch(e Event)              { s.sys.Dispatch(e) }
func (s *service) State() State                  { return s.sys.State() }

func pagingQuery(st State) (Page, bool) {
	if st.Paging == nil {
		return Page{}, false
	}
	return *st.Paging, true
}

func always(State) (struct{}, bool) { return struct{}{}, true }

func (s *service) fetchPage(ctx context.Context, p Page) (feedback.Cleanup, error) {
	go func() {
		msgs, err := s.src.FetchStarred(ctx, s.me, p.Before)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn("fetch starred failed", zap.Error(err))
			s.sys.Emit(ctx, Failed{Reason: err.Error()})
			return
		}
		s.sys.Emit(ctx, OlderLoaded{Messages: msgs})
	}()
	return feedback.Noop, nil
}

// subscribe follows star toggles for as long as the board runs.
func (s *service) subscribe(ctx context.Context, _ struct{}) (feedback.Cleanup, error) {
	toggles := s.src.Favorites(ctx)
	go func() {
		for m := range toggles {
			s.sys.Emit(ctx, FavoriteToggled{Message: m})
		}
	}()
	return feedback.Noop, nil
}
