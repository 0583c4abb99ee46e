package feedback

import (
	"fmt"

	"go.uber.org/zap"
)

// Set runs one effect per key of the key set its query derives. Keys that stay in
// the set keep their effect untouched; removed keys are stopped, new keys started.
// Like Single, it is driven from one goroutine.
type Set[S any, K comparable] struct {
	name   string
	query  func(S) []K
	effect Effect[K]
	opts   options

	active map[K]*running
	err    error
}

func NewSet[S any, K comparable](name string, query func(S) []K, effect Effect[K], opts ...Option) *Set[S, K] {
	o := newOptions(opts)
	o.log = o.log.With(zap.String("loop", name))
	return &Set[S, K]{
		name:   name,
		query:  query,
		effect: effect,
		opts:   o,
		active: make(map[K]*running),
	}
}

func (l *Set[S, K]) Reconcile(state S) error {
	if l.err != nil {
		return l.err
	}
	keys := l.query(state)
	want := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	for k, r := range l.active {
		if _, keep := want[k]; keep {
			continue
		}
		delete(l.active, k)
		r.stop()
		effectsStopped.WithLabelValues(l.name).Inc()
	}

	for _, k := range keys {
		if _, ok := l.active[k]; ok {
			continue
		}
		r, err := start(l.opts.base, l.effect, k)
		if err != nil {
			l.err = fmt.Errorf("%w: %s[%v]: %w", ErrReconcilerFailed, l.name, k, err)
			l.opts.log.Error("effect failed to start", zap.Any("key", k), zap.Error(err))
			return l.err
		}
		effectsStarted.WithLabelValues(l.name).Inc()
		l.active[k] = r
	}
	return nil
}

// Stop tears down every running effect and forgets the keys.
func (l *Set[S, K]) Stop() {
	for k, r := range l.active {
		delete(l.active, k)
		r.stop()
		effectsStopped.WithLabelValues(l.name).Inc()
	}
}

// Keys returns the keys that currently have a running effect, in no particular order.
func (l *Set[S, K]) Keys() []K {
	out := make([]K, 0, len(l.active))
	for k := range l.active {
		out = append(out, k)
	}
	return out
}
