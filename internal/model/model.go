package model

type (
	UserID    int64
	MessageID string
)

// NoAuthor marks a message that has not been attributed to a user yet.
const NoAuthor UserID = 0

type Message struct {
	ID      MessageID `json:"id"`
	Author  UserID    `json:"userId,omitempty"`
	Text    string    `json:"message"`
	Starred bool      `json:"isStarred"`
}

type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

// ToggleStar returns a copy of m with the starred flag flipped.
func ToggleStar(m Message) Message {
	m.Starred = !m.Starred
	return m
}

// WithAuthor returns a copy of m attributed to author.
func WithAuthor(m Message, author UserID) Message {
	m.Author = author
	return m
}

// IndexOf returns the position of the message with id in msgs, or -1.
func IndexOf(msgs []Message, id MessageID) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// Prepend returns older followed by held, skipping entries of older whose id is
// already present. Neither input is modified.
func Prepend(older, held []Message) []Message {
	seen := make(map[MessageID]struct{}, len(held))
	for _, m := range held {
		seen[m.ID] = struct{}{}
	}
	out := make([]Message, 0, len(older)+len(held))
	for _, m := range older {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return append(out, held...)
}
