package directory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultCapacity      = 1000
	DefaultLookupTimeout = 10 * time.Second
)

type Options struct {
	// TTL is how long a resolved user is served before it is looked up again.
	TTL time.Duration
	// Capacity bounds the resolved entries. Lookups in flight do not count.
	Capacity int
	// LookupTimeout bounds one underlying lookup. Lookups are shared between
	// callers, so they do not follow any single caller's context.
	LookupTimeout time.Duration
	// Now is the clock used for expiry.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = DefaultLookupTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type entry struct {
	user    model.User
	expires time.Time
}

// Cache memoizes a Service. Concurrent resolves of the same id share one lookup;
// failed lookups are not stored, so the next resolve tries again.
type Cache struct {
	svc   Service
	opts  Options
	log   *zap.Logger
	group singleflight.Group

	mu      sync.Mutex
	entries *lru.Cache
}

func NewCache(svc Service, opts Options, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()
	c := &Cache{
		svc:     svc,
		opts:    opts,
		log:     log.Named("directory"),
		entries: lru.New(opts.Capacity),
	}
	c.entries.OnEvicted = func(key lru.Key, _ any) {
		c.log.Debug("evicted", zap.Any("user", key))
	}
	return c
}

// Resolve returns the user with id, waiting for a lookup if none is cached. A
// cancelled ctx stops the wait but not the shared lookup.
func (c *Cache) Resolve(ctx context.Context, id model.UserID) (model.User, error) {
	if u, ok := c.Peek(id); ok {
		cacheResults.WithLabelValues("hit").Inc()
		return u, nil
	}
	select {
	case r := <-c.flight(ctx, id):
		return result(r)
	case <-ctx.Done():
		return model.User{}, ctx.Err()
	}
}

// ResolveAsync is Resolve without blocking. The channel receives exactly one
// Result; it is already filled when id is cached.
func (c *Cache) ResolveAsync(id model.UserID) <-chan Result {
	out := make(chan Result, 1)
	if u, ok := c.Peek(id); ok {
		cacheResults.WithLabelValues("hit").Inc()
		out <- Result{User: u}
		return out
	}
	ch := c.flight(context.Background(), id)
	go func() {
		u, err := result(<-ch)
		out <- Result{User: u, Err: err}
	}()
	return out
}

// Peek returns the cached user with id without starting a lookup.
func (c *Cache) Peek(id model.UserID) (model.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries.Get(id)
	if !ok {
		return model.User{}, false
	}
	e := v.(entry)
	if !c.opts.Now().Before(e.expires) {
		c.entries.Remove(id)
		return model.User{}, false
	}
	return e.user, true
}

// Invalidate drops the cached user with id. A lookup in flight is not affected.
func (c *Cache) Invalidate(id model.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(id)
}

// Len returns the number of cached users, expired ones included until they are
// next touched.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache) flight(ctx context.Context, id model.UserID) <-chan singleflight.Result {
	lookupCtx := context.WithoutCancel(ctx)
	return c.group.DoChan(strconv.FormatInt(int64(id), 10), func() (any, error) {
		return c.lookup(lookupCtx, id)
	})
}

// resolved is the value a flight shares. cached marks a flight that found the
// user stored by an earlier flight and issued no lookup.
type resolved struct {
	user   model.User
	cached bool
}

func (c *Cache) lookup(ctx context.Context, id model.UserID) (resolved, error) {
	// a previous flight may have stored id after our caller peeked
	if u, ok := c.Peek(id); ok {
		return resolved{user: u, cached: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.LookupTimeout)
	defer cancel()

	u, err := c.svc.Lookup(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		lookups.WithLabelValues("not_found").Inc()
		c.log.Info("user not found", zap.Int64("user", int64(id)))
		return resolved{}, err
	case err != nil:
		lookups.WithLabelValues("error").Inc()
		c.log.Warn("lookup failed", zap.Int64("user", int64(id)), zap.Error(err))
		return resolved{}, err
	}
	lookups.WithLabelValues("ok").Inc()

	c.mu.Lock()
	c.entries.Add(id, entry{user: u, expires: c.opts.Now().Add(c.opts.TTL)})
	c.mu.Unlock()
	return resolved{user: u}, nil
}

func result(r singleflight.Result) (model.User, error) {
	v, _ := r.Val.(resolved)
	switch {
	case r.Shared:
		cacheResults.WithLabelValues("coalesced").Inc()
	case v.cached:
		cacheResults.WithLabelValues("hit").Inc()
	default:
		cacheResults.WithLabelValues("miss").Inc()
	}
	if r.Err != nil {
		return model.User{}, r.Err
	}
	return v.user, nil
}
