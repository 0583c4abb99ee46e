package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

type httpService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPService looks users up through the REST user service at baseURL.
func NewHTTPService(baseURL string) Service {
	return &httpService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *httpService) Lookup(ctx context.Context, id model.UserID) (model.User, error) {
	q := url.Values{"userId": {strconv.FormatInt(int64(id), 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/users/?"+q.Encode(), nil)
	if err != nil {
		return model.User{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.User{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.User{}, fmt.Errorf("lookup user %d: %s body=%s", id, resp.Status, body)
	}

	var u model.User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return model.User{}, fmt.Errorf("lookup user %d: decode: %w", id, err)
	}
	if u.ID != id {
		return model.User{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return u, nil
}
