package userloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

func TestTrackAddsUnseenIDs(t *testing.T) {
	s, err := Reduce(State{}, Track{IDs: []model.UserID{3, 4, 3, model.NoAuthor}})
	require.NoError(t, err)
	s, err = Reduce(s, Track{IDs: []model.UserID{4, 5}})
	require.NoError(t, err)

	assert.Equal(t, []Request{Pending{ID: 3}, Pending{ID: 4}, Pending{ID: 5}}, s.Requests)
	assert.Equal(t, []model.UserID{3, 4, 5}, PendingIDs(s))
}

func TestLookupOutcomes(t *testing.T) {
	s := State{Requests: []Request{Pending{ID: 3}, Pending{ID: 4}}}
	s, _ = Reduce(s, LookupSucceeded{User: model.User{ID: 3, Name: "Ada"}})
	s, _ = Reduce(s, LookupFailed{ID: 4, Reason: "not found"})

	assert.Equal(t, []Request{
		Resolved{User: model.User{ID: 3, Name: "Ada"}},
		Failed{ID: 4, Reason: "not found"},
	}, s.Requests)
	assert.Empty(t, PendingIDs(s))

	// late outcomes for settled or unknown ids change nothing
	late, _ := Reduce(s, LookupFailed{ID: 3, Reason: "timeout"})
	assert.Equal(t, s, late)
	late, _ = Reduce(s, LookupSucceeded{User: model.User{ID: 9}})
	assert.Equal(t, s, late)
}

func TestRetry(t *testing.T) {
	s := State{Requests: []Request{Resolved{User: model.User{ID: 3}}, Failed{ID: 4, Reason: "x"}}}

	next, err := Reduce(s, Retry{ID: 4})
	require.NoError(t, err)
	assert.Equal(t, []model.UserID{4}, PendingIDs(next))
	assert.Equal(t, Failed{ID: 4, Reason: "x"}, s.Requests[1], "input state must not change")

	_, err = Reduce(s, Retry{ID: 3})
	assert.ErrorIs(t, err, ErrNotRetryable)
	_, err = Reduce(s, Retry{ID: 8})
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestRefreshReplacesRequests(t *testing.T) {
	s := State{Requests: []Request{Resolved{User: model.User{ID: 3}}, Failed{ID: 4}}}
	s, err := Reduce(s, Refresh{IDs: []model.UserID{4, 6}})
	require.NoError(t, err)
	assert.Equal(t, []Request{Pending{ID: 4}, Pending{ID: 6}}, s.Requests)
}
