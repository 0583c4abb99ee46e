package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vovarama1992/chat-sync/internal/chat"
	"github.com/Vovarama1992/chat-sync/internal/model"
)

// socket event tags
const (
	eventNewMessage     = "new-message"
	eventUserTyping     = "user-typing"
	eventMessageRead    = "message-read"
	eventMessageStarred = "message-starred"
)

var ErrClosed = errors.New("gateway: connection closed")

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// typingPayload travels as [userId, isTyping].
type typingPayload struct {
	User   model.UserID
	Typing bool
}

func (p typingPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.User, p.Typing})
}

func (p *typingPayload) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("typing payload has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.User); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Typing)
}

type readPayload struct {
	User model.UserID    `json:"userId"`
	ID   model.MessageID `json:"messageId"`
}

type starPayload struct {
	User model.UserID    `json:"userId"`
	ID   model.MessageID `json:"messageIdToStar"`
}

// Connect dials the event socket.
func (c *Client) Connect(ctx context.Context) (chat.Conn, error) {
	ws, resp, err := c.dialer.DialContext(ctx, c.socketURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gateway: dial %s: %s: %w", c.socketURL, resp.Status, err)
		}
		return nil, fmt.Errorf("gateway: dial %s: %w", c.socketURL, err)
	}
	c.log.Info("socket connected", zap.String("url", c.socketURL))
	return &conn{ws: ws, log: c.log}, nil
}

type conn struct {
	ws     *websocket.Conn
	log    *zap.Logger
	wmu    sync.Mutex
	closed atomic.Bool
	listen sync.Once
}

// Listen starts the read loop. Only the first call has an effect.
func (c *conn) Listen(h chat.Handlers) {
	c.listen.Do(func() { go c.read(h) })
}

func (c *conn) read(h chat.Handlers) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() && h.OnDisconnected != nil {
				h.OnDisconnected(err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("bad frame", zap.Error(err))
			continue
		}
		switch f.Event {
		case eventNewMessage:
			var m model.Message
			if err := json.Unmarshal(f.Data, &m); err != nil {
				c.log.Warn("bad payload", zap.String("event", f.Event), zap.Error(err))
				continue
			}
			if h.OnMessage != nil {
				h.OnMessage(m)
			}
		case eventUserTyping:
			var p typingPayload
			if err := json.Unmarshal(f.Data, &p); err != nil {
				c.log.Warn("bad payload", zap.String("event", f.Event), zap.Error(err))
				continue
			}
			if h.OnTyping != nil {
				h.OnTyping(p.User, p.Typing)
			}
		default:
			c.log.Debug("ignored frame", zap.String("event", f.Event))
		}
	}
}

func (c *conn) SendMessage(ctx context.Context, m model.Message) error {
	return c.emit(ctx, eventNewMessage, m)
}

func (c *conn) ReportTyping(ctx context.Context, user model.UserID, typing bool) error {
	return c.emit(ctx, eventUserTyping, typingPayload{User: user, Typing: typing})
}

func (c *conn) MarkRead(ctx context.Context, user model.UserID, id model.MessageID) error {
	return c.emit(ctx, eventMessageRead, readPayload{User: user, ID: id})
}

func (c *conn) MarkStarred(ctx context.Context, user model.UserID, id model.MessageID) error {
	return c.emit(ctx, eventMessageStarred, starPayload{User: user, ID: id})
}

func (c *conn) emit(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("gateway: emit %s: %w", event, err)
	}
	return nil
}

// Close ends the connection. The disconnect handler is not called.
func (c *conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.ws.Close()
}
