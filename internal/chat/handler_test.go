package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

type stubService struct {
	mu     sync.Mutex
	state  State
	events []Event
}

func (s *stubService) Run(context.Context) error { return nil }
func (s *stubService) State() State              { return s.state }
func (s *stubService) Watch(func(State))         {}
func (s *stubService) Me() model.UserID          { return 7 }

func (s *stubService) Dispatch(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func serve(t *testing.T, svc Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(svc))
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetState(t *testing.T) {
	svc := &stubService{state: DisplayingMessages{
		Messages: []model.Message{{ID: "m1", Author: 3, Text: "hi"}},
		Paging:   &Page{Before: "m1"},
		Typing:   map[model.UserID]bool{9: true, 4: true},
	}}
	rec := serve(t, svc, http.MethodGet, "/session/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var v View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "DisplayingMessages", v.Kind)
	assert.True(t, v.Loading)
	assert.Equal(t, model.MessageID("m1"), v.LoadBefore)
	assert.Equal(t, []model.UserID{4, 9}, v.Typing)
	assert.Len(t, v.Messages, 1)
}

func TestPostMessage(t *testing.T) {
	svc := &stubService{state: DisplayingMessages{}}
	rec := serve(t, svc, http.MethodPost, "/session/messages", `{"text":" hello "}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, svc.events, 2)
	send, ok := svc.events[0].(SendRequested)
	require.True(t, ok)
	assert.Equal(t, "hello", send.Message.Text)
	assert.NotEmpty(t, send.Message.ID)
	assert.Equal(t, TypingReported{User: 7, Typing: false}, svc.events[1])
}

func TestPostMessageRejections(t *testing.T) {
	pending := &model.Message{ID: "x"}
	tests := []struct {
		name  string
		state State
		body  string
		code  int
	}{
		{"invalid json", DisplayingMessages{}, `{`, http.StatusBadRequest},
		{"blank text", DisplayingMessages{}, `{"text":"   "}`, http.StatusBadRequest},
		{"send pending", DisplayingMessages{Outbound: pending}, `{"text":"hi"}`, http.StatusConflict},
		{"not connected", Connecting{}, `{"text":"hi"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{state: tt.state}
			rec := serve(t, svc, http.MethodPost, "/session/messages", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Empty(t, svc.events)
		})
	}
}

func TestPostOlder(t *testing.T) {
	svc := &stubService{state: DisplayingMessages{}}
	assert.Equal(t, http.StatusAccepted, serve(t, svc, http.MethodPost, "/session/older", "").Code)
	assert.Equal(t, []Event{OlderPageRequested{}}, svc.events)

	loading := &stubService{state: DisplayingMessages{Paging: &Page{}}}
	assert.Equal(t, http.StatusConflict, serve(t, loading, http.MethodPost, "/session/older", "").Code)
	assert.Empty(t, loading.events)
}

func TestPostTypingAndRead(t *testing.T) {
	svc := &stubService{state: DisplayingMessages{}}
	assert.Equal(t, http.StatusAccepted, serve(t, svc, http.MethodPost, "/session/typing", `{"typing":true}`).Code)
	assert.Equal(t, http.StatusAccepted, serve(t, svc, http.MethodPost, "/session/read", "").Code)
	assert.Equal(t, []Event{TypingReported{User: 7, Typing: true}, AllRead{}}, svc.events)

	offline := &stubService{state: DisplayingError{Reason: "down", RetryIn: 1}}
	assert.Equal(t, http.StatusConflict, serve(t, offline, http.MethodPost, "/session/read", "").Code)
}

func TestPostStar(t *testing.T) {
	held := model.Message{ID: "m1", Author: 3, Text: "hi", Starred: true}
	svc := &stubService{state: DisplayingMessages{Messages: []model.Message{held}}}

	assert.Equal(t, http.StatusNotFound, serve(t, svc, http.MethodPost, "/session/star", `{"id":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, svc, http.MethodPost, "/session/star", `{}`).Code)
	assert.Equal(t, http.StatusAccepted, serve(t, svc, http.MethodPost, "/session/star", `{"id":"m1"}`).Code)
	assert.Equal(t, []Event{StarRequested{Message: held}}, svc.events)
}

func TestParticipants(t *testing.T) {
	st := DisplayingMessages{
		Messages: []model.Message{
			{ID: "a", Author: 3},
			{ID: "b", Author: 7},
			{ID: "c", Author: 3},
			{ID: "d", Author: model.NoAuthor},
			{ID: "e", Author: 5},
		},
		Typing: map[model.UserID]bool{11: true, 5: true, 9: true},
	}
	assert.Equal(t, []model.UserID{3, 5, 9, 11}, Participants(st, 7))
	assert.Nil(t, Participants(Connecting{}, 7))
}

func TestCompose(t *testing.T) {
	_, err := Compose(" \n ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	a, err := Compose("hi")
	require.NoError(t, err)
	b, err := Compose("hi")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, model.NoAuthor, a.Author)

	assert.Equal(t, TypingReported{User: 7, Typing: true}, ComposerTyping(7, "h"))
}
