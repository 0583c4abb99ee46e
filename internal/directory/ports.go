package directory

import (
	"context"
	"errors"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

var ErrNotFound = errors.New("directory: user not found")

// Service resolves users by id. Implementations wrap ErrNotFound when the id is
// unknown.
type Service interface {
	Lookup(ctx context.Context, id model.UserID) (model.User, error)
}

// Result is the outcome of an asynchronous resolve.
type Result struct {
	User model.User
	Err  error
}
