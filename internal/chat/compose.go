package chat

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

var ErrEmptyMessage = errors.New("chat: message is empty")

// Compose turns composer input into an outbound message with a fresh id.
// The author is filled in by Reduce when the send is requested.
func Compose(text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, ErrEmptyMessage
	}
	return model.Message{ID: model.MessageID(uuid.NewString()), Text: text}, nil
}

// ComposerTyping is the typing report for the local user while the input holds text.
func ComposerTyping(me model.UserID, text string) TypingReported {
	return TypingReported{User: me, Typing: text != ""}
}
