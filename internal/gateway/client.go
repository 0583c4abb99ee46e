// Package gateway talks to the messaging backend: a websocket for realtime
// events and a REST API for history.
package gateway

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

const (
	DefaultRetries       = 3
	DefaultRetryInterval = 500 * time.Millisecond
	writeTimeout         = 10 * time.Second
)

type Options struct {
	// BaseURL is the REST root, e.g. http://localhost:5000.
	BaseURL string
	// SocketURL is the websocket endpoint, e.g. ws://localhost:5000/socket.
	SocketURL string
	// Retries is how many times a failed fetch is retried. Zero means
	// DefaultRetries and a negative value disables retries.
	Retries int
	// RetryInterval paces retries across all fetches of the client.
	RetryInterval time.Duration
	HTTPClient    *http.Client
	Dialer        *websocket.Dialer
}

// Client implements chat.Gateway, chat.Favorites and starred.Source.
type Client struct {
	baseURL   string
	socketURL string
	retries   int
	http      *http.Client
	dialer    *websocket.Dialer
	limiter   *rate.Limiter
	log       *zap.Logger

	mu   sync.Mutex
	subs map[chan model.Message]<-chan struct{}
}

func New(opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		socketURL: opts.SocketURL,
		retries:   opts.Retries,
		http:      opts.HTTPClient,
		dialer:    opts.Dialer,
		limiter:   rate.NewLimiter(rate.Every(opts.RetryInterval), 1),
		log:       log.Named("gateway"),
		subs:      make(map[chan model.Message]<-chan struct{}),
	}
}
