package feedback

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Reducer computes the next state. A non-nil error reports a rejected event; the
// returned state is applied either way.
type Reducer[S, E any] func(state S, event E) (S, error)

type envelope[E any] struct {
	event  E
	origin context.Context
}

// System serializes state transitions. Events go into an unbounded FIFO queue and a
// single Run goroutine applies them one by one, reconciling every attached
// Reconciler after each transition.
type System[S, E any] struct {
	name   string
	reduce Reducer[S, E]
	log    *zap.Logger

	mu    sync.Mutex
	queue []envelope[E]
	wake  chan struct{}

	stateMu sync.RWMutex
	state   S

	loops    []Reconciler[S]
	watchers []func(S)
}

func NewSystem[S, E any](name string, initial S, reduce Reducer[S, E], log *zap.Logger) *System[S, E] {
	if log == nil {
		log = zap.NewNop()
	}
	return &System[S, E]{
		name:   name,
		reduce: reduce,
		log:    log.With(zap.String("system", name)),
		wake:   make(chan struct{}, 1),
		state:  initial,
	}
}

// Attach adds reconcilers. They run in attach order and stop in reverse order.
// Call before Run.
func (s *System[S, E]) Attach(loops ...Reconciler[S]) {
	s.loops = append(s.loops, loops...)
}

// Watch registers fn to be called on the Run goroutine with every new state.
// Call before Run.
func (s *System[S, E]) Watch(fn func(S)) {
	s.watchers = append(s.watchers, fn)
}

// Dispatch queues an event. It never blocks.
func (s *System[S, E]) Dispatch(e E) {
	s.enqueue(envelope[E]{event: e})
}

// Emit queues an event on behalf of the effect owning ctx. The event is dropped if
// the effect has been stopped by the time the event would be applied.
func (s *System[S, E]) Emit(ctx context.Context, e E) {
	if ctx.Err() != nil {
		return
	}
	s.enqueue(envelope[E]{event: e, origin: ctx})
}

// State returns the latest applied state.
func (s *System[S, E]) State() S {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Run applies queued events until ctx is done, then stops every reconciler.
// It returns a non-nil error only when a reconciler fails synchronously.
func (s *System[S, E]) Run(ctx context.Context) error {
	defer s.teardown()

	if err := s.reconcile(s.State()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}
		for {
			env, ok := s.next()
			if !ok {
				break
			}
			if err := s.apply(env); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

func (s *System[S, E]) enqueue(env envelope[E]) {
	s.mu.Lock()
	s.queue = append(s.queue, env)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *System[S, E]) next() (envelope[E], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return envelope[E]{}, false
	}
	env := s.queue[0]
	var zero envelope[E]
	s.queue[0] = zero
	s.queue = s.queue[1:]
	return env, true
}

func (s *System[S, E]) apply(env envelope[E]) error {
	if env.origin != nil && env.origin.Err() != nil {
		s.log.Debug("dropped event from stopped effect", zap.String("event", kind(env.event)))
		return nil
	}
	prev := s.State()
	next, err := s.reduce(prev, env.event)
	transitions.WithLabelValues(s.name).Inc()
	if err != nil {
		rejectedEvents.WithLabelValues(s.name).Inc()
		s.log.Error("event rejected", zap.Error(err))
	}
	s.log.Debug("transition",
		zap.String("state", kind(prev)),
		zap.String("event", kind(env.event)),
		zap.String("next", kind(next)))

	s.stateMu.Lock()
	s.state = next
	s.stateMu.Unlock()

	if err := s.reconcile(next); err != nil {
		return err
	}
	for _, w := range s.watchers {
		w(next)
	}
	return nil
}

func (s *System[S, E]) reconcile(state S) error {
	for _, l := range s.loops {
		if err := l.Reconcile(state); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (s *System[S, E]) teardown() {
	for i := len(s.loops) - 1; i >= 0; i-- {
		s.loops[i].Stop()
	}
}

func kind(v any) string {
	return fmt.Sprintf("%T", v)
}
