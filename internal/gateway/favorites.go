package gateway

import (
	"context"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

const favoritesBuffer = 16

// PublishFavorite fans m out to every current subscriber. A subscriber with a
// full buffer holds the publisher until it reads or its context ends.
func (c *Client) PublishFavorite(m model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch, done := range c.subs {
		select {
		case ch <- m:
		case <-done:
		}
	}
}

// Favorites streams star toggles published after the call until ctx ends, then
// closes the channel.
func (c *Client) Favorites(ctx context.Context) <-chan model.Message {
	ch := make(chan model.Message, favoritesBuffer)
	c.mu.Lock()
	c.subs[ch] = ctx.Done()
	c.mu.Unlock()

	context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, ch)
		close(ch)
	})
	return ch
}
