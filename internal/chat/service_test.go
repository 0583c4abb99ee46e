package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// connLog records what the session wrote to a connection.
type connLog struct {
	sent    []model.Message
	typing  []bool
	read    []model.MessageID
	starred []model.MessageID
	closed  bool
}

type fakeConn struct {
	mu       sync.Mutex
	handlers *Handlers
	log      connLog
}

func (c *fakeConn) Listen(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = &h
}

func (c *fakeConn) SendMessage(_ context.Context, m model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.sent = append(c.log.sent, m)
	return nil
}

func (c *fakeConn) ReportTyping(_ context.Context, _ model.UserID, typing bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.typing = append(c.log.typing, typing)
	return nil
}

func (c *fakeConn) MarkRead(_ context.Context, _ model.UserID, id model.MessageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.read = append(c.log.read, id)
	return nil
}

func (c *fakeConn) MarkStarred(_ context.Context, _ model.UserID, id model.MessageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.starred = append(c.log.starred, id)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.closed = true
	return nil
}

func (c *fakeConn) listening() (Handlers, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		return Handlers{}, false
	}
	return *c.handlers, true
}

func (c *fakeConn) snapshot() connLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return connLog{
		sent:    append([]model.Message(nil), c.log.sent...),
		typing:  append([]bool(nil), c.log.typing...),
		read:    append([]model.MessageID(nil), c.log.read...),
		starred: append([]model.MessageID(nil), c.log.starred...),
		closed:  c.log.closed,
	}
}

type fakeGateway struct {
	mu       sync.Mutex
	failures int
	conns    []*fakeConn
	pages    map[model.MessageID][]model.Message
	lastRead model.MessageID
}

func (g *fakeGateway) Connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failures > 0 {
		g.failures--
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{}
	g.conns = append(g.conns, c)
	return c, nil
}

func (g *fakeGateway) FetchMessagesBefore(_ context.Context, _ model.UserID, before model.MessageID) ([]model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pages[before], nil
}

func (g *fakeGateway) FetchLastRead(context.Context, model.UserID) (model.MessageID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRead, nil
}

func (g *fakeGateway) connections() []*fakeConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*fakeConn(nil), g.conns...)
}

type fakeFavorites struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (f *fakeFavorites) PublishFavorite(m model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
}

func (f *fakeFavorites) published() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.msgs...)
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func startService(t *testing.T, svc Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func currentMessages(svc Service) ([]model.Message, bool) {
	d, ok := svc.State().(DisplayingMessages)
	return d.Messages, ok
}

func TestServiceSessionFlow(t *testing.T) {
	m1 := model.Message{ID: "m1", Author: 3, Text: "hi"}
	m2 := model.Message{ID: "m2", Author: 4, Text: "hello"}
	gw := &fakeGateway{
		pages:    map[model.MessageID][]model.Message{"": {m1, m2}},
		lastRead: "m1",
	}
	favs := &fakeFavorites{}
	svc := NewService(Config{Me: 7, RetryCountdown: 3, RetryTick: 10 * time.Millisecond}, gw, favs, zap.NewNop())
	startService(t, svc)

	require.Eventually(t, func() bool {
		d, ok := svc.State().(DisplayingMessages)
		return ok && len(d.Messages) == 2 && d.Paging == nil && d.LastRead != nil
	}, waitFor, tick)

	conns := gw.connections()
	require.Len(t, conns, 1)
	conn := conns[0]
	require.Eventually(t, func() bool {
		return len(conn.snapshot().read) == 1
	}, waitFor, tick)
	assert.Equal(t, []model.MessageID{"m1"}, conn.snapshot().read)

	out, err := Compose("  ping ")
	require.NoError(t, err)
	svc.Dispatch(SendRequested{Message: out})
	require.Eventually(t, func() bool {
		d, ok := svc.State().(DisplayingMessages)
		return ok && d.Outbound == nil && len(conn.snapshot().sent) == 1
	}, waitFor, tick)
	sent := conn.snapshot().sent[0]
	assert.Equal(t, "ping", sent.Text)
	assert.Equal(t, model.UserID(7), sent.Author)

	var h Handlers
	require.Eventually(t, func() bool {
		var ok bool
		h, ok = conn.listening()
		return ok
	}, waitFor, tick)

	h.OnMessage(model.Message{ID: "m3", Author: 3, Text: "news"})
	h.OnTyping(7, true)
	h.OnTyping(9, true)
	require.Eventually(t, func() bool {
		d, ok := svc.State().(DisplayingMessages)
		return ok && len(d.Messages) == 3 && d.Typing[9]
	}, waitFor, tick)
	d := svc.State().(DisplayingMessages)
	assert.NotContains(t, d.Typing, model.UserID(7))

	svc.Dispatch(StarRequested{Message: m2})
	require.Eventually(t, func() bool {
		msgs, _ := currentMessages(svc)
		return len(msgs) == 3 && msgs[1].Starred
	}, waitFor, tick)
	assert.Equal(t, []model.MessageID{"m2"}, conn.snapshot().starred)
	require.Len(t, favs.published(), 1)
	assert.True(t, favs.published()[0].Starred)

	svc.Dispatch(AllRead{})
	require.Eventually(t, func() bool {
		read := conn.snapshot().read
		return len(read) == 2 && read[1] == "m3"
	}, waitFor, tick)
}

func TestServiceRecoversFromDisconnect(t *testing.T) {
	gw := &fakeGateway{pages: map[model.MessageID][]model.Message{}}
	svc := NewService(Config{Me: 7, RetryCountdown: 2, RetryTick: 5 * time.Millisecond}, gw, nil, zap.NewNop())

	var (
		mu    sync.Mutex
		kinds []string
	)
	svc.Watch(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, kindOf(st))
	})
	startService(t, svc)

	var h Handlers
	require.Eventually(t, func() bool {
		conns := gw.connections()
		if len(conns) != 1 {
			return false
		}
		var ok bool
		h, ok = conns[0].listening()
		return ok
	}, waitFor, tick)

	h.OnDisconnected(errors.New("socket closed"))

	require.Eventually(t, func() bool {
		conns := gw.connections()
		_, displaying := svc.State().(DisplayingMessages)
		return len(conns) == 2 && displaying
	}, waitFor, tick)
	assert.True(t, gw.connections()[0].snapshot().closed)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, "DisplayingError")
	assert.Contains(t, kinds, "Connecting")
}

func TestServiceRetriesFailedConnect(t *testing.T) {
	gw := &fakeGateway{failures: 2, pages: map[model.MessageID][]model.Message{}}
	svc := NewService(Config{Me: 7, RetryCountdown: 1, RetryTick: time.Millisecond}, gw, nil, zap.NewNop())
	startService(t, svc)

	require.Eventually(t, func() bool {
		_, ok := svc.State().(DisplayingMessages)
		return ok
	}, waitFor, tick)
	assert.Len(t, gw.connections(), 1)
}
