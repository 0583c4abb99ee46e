// Package feedback keeps imperative side effects in step with state-derived intents.
//
// A query derives an intent from the current state; a reconciler starts, keeps or
// stops the effect bound to that intent every time the state changes. [Single]
// manages one slot, [Set] manages one effect per key of a varying key set, and
// [System] applies events to the state one at a time and runs the reconcilers
// after every transition.
package feedback

import (
	"context"
	"errors"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// Cleanup releases whatever an effect acquired. Reconcilers call it exactly once.
type Cleanup func()

// Noop is the Cleanup of effects that hold nothing.
func Noop() {}

// Effect starts the side effect for intent q. ctx is cancelled when the effect is
// stopped; continuations must emit through it so that late completions are dropped.
// A returned error is synchronous and fatal to the reconciler that started it.
type Effect[Q any] func(ctx context.Context, q Q) (Cleanup, error)

// Reconciler is the part of Single and Set a System drives.
type Reconciler[S any] interface {
	Reconcile(state S) error
	Stop()
}

var ErrReconcilerFailed = errors.New("feedback: reconciler failed")

type Option func(*options)

type options struct {
	log   *zap.Logger
	base  context.Context
	equal []cmp.Option
}

func newOptions(opts []Option) options {
	o := options{log: zap.NewNop(), base: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithContext sets the parent of every effect context.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.base = ctx }
}

// WithEqualOptions passes extra go-cmp options to the intent comparison of Single,
// e.g. cmpopts.EquateEmpty or an AllowUnexported for intents with private fields.
func WithEqualOptions(opts ...cmp.Option) Option {
	return func(o *options) { o.equal = append(o.equal, opts...) }
}

type running struct {
	cancel  context.CancelFunc
	cleanup Cleanup
}

func start[Q any](base context.Context, effect Effect[Q], q Q) (*running, error) {
	ctx, cancel := context.WithCancel(base)
	cleanup, err := effect(ctx, q)
	if err != nil {
		cancel()
		return nil, err
	}
	if cleanup == nil {
		cleanup = Noop
	}
	return &running{cancel: cancel, cleanup: cleanup}, nil
}

func (r *running) stop() {
	r.cancel()
	r.cleanup()
}
