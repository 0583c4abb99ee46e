package userloader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Vovarama1992/chat-sync/internal/directory"
	"github.com/Vovarama1992/chat-sync/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type flakyDirectory struct {
	mu    sync.Mutex
	fails map[model.UserID]int
	calls map[model.UserID]int
}

func (d *flakyDirectory) Lookup(_ context.Context, id model.UserID) (model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[id]++
	if d.fails[id] > 0 {
		d.fails[id]--
		return model.User{}, fmt.Errorf("%w: id %d", directory.ErrNotFound, id)
	}
	return model.User{ID: id, Name: fmt.Sprintf("user-%d", id)}, nil
}

func (d *flakyDirectory) callsFor(id model.UserID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[id]
}

func runLoader(t *testing.T, svc Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func settled(svc Service) bool {
	return len(PendingIDs(svc.State())) == 0
}

func TestLoaderResolvesThroughCache(t *testing.T) {
	dir := &flakyDirectory{fails: map[model.UserID]int{4: 1}, calls: map[model.UserID]int{}}
	cache := directory.NewCache(dir, directory.Options{}, nil)
	svc := NewService(cache, nil)
	runLoader(t, svc)

	svc.Dispatch(Track{IDs: []model.UserID{3, 4}})
	require.Eventually(t, func() bool {
		return len(svc.State().Requests) == 2 && settled(svc)
	}, time.Second, 5*time.Millisecond)

	reqs := svc.State().Requests
	assert.Equal(t, Resolved{User: model.User{ID: 3, Name: "user-3"}}, reqs[0])
	failed, ok := reqs[1].(Failed)
	require.True(t, ok)
	assert.Contains(t, failed.Reason, "not found")

	svc.Dispatch(Retry{ID: 4})
	require.Eventually(t, func() bool {
		_, ok := svc.State().Requests[1].(Resolved)
		return ok
	}, time.Second, 5*time.Millisecond)

	// a refresh of a cached user is answered without a new lookup
	svc.Dispatch(Refresh{IDs: []model.UserID{3}})
	require.Eventually(t, func() bool {
		reqs := svc.State().Requests
		return len(reqs) == 1 && settled(svc)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, dir.callsFor(3))
	assert.Equal(t, 2, dir.callsFor(4))
}

type stubLoader struct {
	state  State
	events []Event
}

func (s *stubLoader) Run(context.Context) error { return nil }
func (s *stubLoader) Dispatch(e Event)          { s.events = append(s.events, e) }
func (s *stubLoader) State() State              { return s.state }

func TestLoaderHandlers(t *testing.T) {
	loader := &stubLoader{state: State{Requests: []Request{
		Pending{ID: 2},
		Resolved{User: model.User{ID: 3, Name: "Ada"}},
		Failed{ID: 4, Reason: "not found"},
	}}}
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(loader))

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do(http.MethodGet, "/users/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":2,"status":"pending"},
		{"id":3,"status":"resolved","name":"Ada"},
		{"id":4,"status":"failed","error":"not found"}
	]`, rec.Body.String())

	assert.Equal(t, http.StatusAccepted, do(http.MethodPost, "/users/track", `{"ids":[5,6]}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/users/track", `[`).Code)
	assert.Equal(t, http.StatusAccepted, do(http.MethodPost, "/users/refresh", `{"ids":[1]}`).Code)
	assert.Equal(t, http.StatusAccepted, do(http.MethodPost, "/users/4/retry", "").Code)
	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/users/3/retry", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/users/9/retry", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/users/abc/retry", "").Code)

	assert.Equal(t, []Event{
		Track{IDs: []model.UserID{5, 6}},
		Refresh{IDs: []model.UserID{1}},
		Retry{ID: 4},
	}, loader.events)
}
