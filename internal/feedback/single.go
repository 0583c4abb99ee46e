package feedback

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// Single keeps at most one effect running for the intent its query derives.
//
// The intent is compared with the previous one by deep structural equality, so a
// freshly built but equal value leaves the running effect alone. A different intent
// stops the old effect before the new one starts. Single is driven from one
// goroutine (the System loop) and is not safe for concurrent use.
type Single[S, Q any] struct {
	name   string
	query  func(S) (Q, bool)
	effect Effect[Q]
	opts   options

	current Q
	active  *running
	err     error
}

func NewSingle[S, Q any](name string, query func(S) (Q, bool), effect Effect[Q], opts ...Option) *Single[S, Q] {
	o := newOptions(opts)
	o.log = o.log.With(zap.String("loop", name))
	return &Single[S, Q]{name: name, query: query, effect: effect, opts: o}
}

func (l *Single[S, Q]) Reconcile(state S) error {
	if l.err != nil {
		return l.err
	}
	q, ok := l.query(state)
	if !ok {
		l.Stop()
		return nil
	}
	if l.active != nil && cmp.Equal(l.current, q, l.opts.equal...) {
		return nil
	}
	if l.active != nil {
		l.opts.log.Debug("intent changed, restarting effect")
	}
	l.Stop()

	r, err := start(l.opts.base, l.effect, q)
	if err != nil {
		l.err = fmt.Errorf("%w: %s: %w", ErrReconcilerFailed, l.name, err)
		l.opts.log.Error("effect failed to start", zap.Error(err))
		return l.err
	}
	effectsStarted.WithLabelValues(l.name).Inc()
	l.current, l.active = q, r
	return nil
}

// Stop tears down the running effect, if any.
func (l *Single[S, Q]) Stop() {
	if l.active == nil {
		return
	}
	r := l.active
	var zero Q
	l.active, l.current = nil, zero
	r.stop()
	effectsStopped.WithLabelValues(l.name).Inc()
}

// Active reports whether an effect is running and for which intent.
func (l *Single[S, Q]) Active() (Q, bool) {
	return l.current, l.active != nil
}
