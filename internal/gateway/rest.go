package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

// StatusError is a non-2xx response from the REST API.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway: GET %s: %d %s body=%s", e.Path, e.Status, http.StatusText(e.Status), e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// FetchMessagesBefore returns the page of messages older than before, or the
// newest page when before is empty.
func (c *Client) FetchMessagesBefore(ctx context.Context, me model.UserID, before model.MessageID) ([]model.Message, error) {
	q := userQuery(me)
	if before != "" {
		q.Set("uuid", string(before))
	}
	var msgs []model.Message
	if err := c.getJSON(ctx, "/messages", q, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// FetchStarred returns the starred messages older than before, or the newest
// ones when before is empty.
func (c *Client) FetchStarred(ctx context.Context, me model.UserID, before model.MessageID) ([]model.Message, error) {
	q := userQuery(me)
	if before != "" {
		q.Set("beforeId", string(before))
	}
	var msgs []model.Message
	if err := c.getJSON(ctx, "/messages/starred", q, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// FetchLastRead returns "" when the user has not read anything yet.
func (c *Client) FetchLastRead(ctx context.Context, me model.UserID) (model.MessageID, error) {
	body, err := c.get(ctx, "/messages/lastRead", userQuery(me))
	if err != nil {
		return "", err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(body, &id); err != nil {
		// plain text body
		return model.MessageID(body), nil
	}
	return model.MessageID(id), nil
}

func userQuery(me model.UserID) url.Values {
	return url.Values{"userId": {strconv.FormatInt(int64(me), 10)}}
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("gateway: decode %s: %w", path, err)
	}
	return nil
}

// get retries transient failures up to the configured count, waiting on the
// shared limiter before each retry.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, errors.Join(lastErr, err)
			}
			c.log.Debug("retrying", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(lastErr))
		}

		body, err := c.do(ctx, path, q)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return nil, err
		}
	}
	c.log.Warn("fetch failed", zap.String("path", path), zap.Int("retries", c.retries), zap.Error(lastErr))
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, &StatusError{Path: path, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
