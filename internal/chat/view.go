package chat

import (
	"slices"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

// View is the JSON shape of a State.
type View struct {
	Kind       string           `json:"kind"`
	Messages   []model.Message  `json:"messages,omitempty"`
	Loading    bool             `json:"loading,omitempty"`
	LoadBefore model.MessageID  `json:"loadBefore,omitempty"`
	Outbound   *model.Message   `json:"outbound,omitempty"`
	StarTarget *model.Message   `json:"starTarget,omitempty"`
	Typing     []model.UserID   `json:"typing,omitempty"`
	LastRead   *model.MessageID `json:"lastRead,omitempty"`
	Error      string           `json:"error,omitempty"`
	RetryIn    int              `json:"retryIn,omitempty"`
}

func NewView(st State) View {
	v := View{Kind: kindOf(st)}
	switch st := st.(type) {
	case DisplayingMessages:
		v.Messages = st.Messages
		if st.Paging != nil {
			v.Loading = true
			v.LoadBefore = st.Paging.Before
		}
		v.Outbound = st.Outbound
		v.StarTarget = st.StarTarget
		v.LastRead = st.LastRead
		for u := range st.Typing {
			v.Typing = append(v.Typing, u)
		}
		slices.Sort(v.Typing)
	case DisplayingError:
		v.Error = st.Reason
		v.RetryIn = st.RetryIn
	}
	return v
}

// CanSend reports whether the composer should accept a new message.
func CanSend(st State) bool {
	d, ok := st.(DisplayingMessages)
	return ok && d.Outbound == nil
}

// CanLoadOlder reports whether a page request would be accepted.
func CanLoadOlder(st State) bool {
	d, ok := st.(DisplayingMessages)
	return ok && d.Paging == nil
}

// Participants lists the authors and typing users of st other than me, authors
// first in message order, without duplicates.
func Participants(st State, me model.UserID) []model.UserID {
	d, ok := st.(DisplayingMessages)
	if !ok {
		return nil
	}
	seen := map[model.UserID]bool{model.NoAuthor: true, me: true}
	var out []model.UserID
	for _, m := range d.Messages {
		if !seen[m.Author] {
			seen[m.Author] = true
			out = append(out, m.Author)
		}
	}
	typing := make([]model.UserID, 0, len(d.Typing))
	for u := range d.Typing {
		if !seen[u] {
			typing = append(typing, u)
		}
	}
	slices.Sort(typing)
	return append(out, typing...)
}
