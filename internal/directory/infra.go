package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

type repo struct {
	db *sql.DB
}

// NewRepo serves lookups from the users table.
func NewRepo(db *sql.DB) Service {
	return &repo{db: db}
}

func (r *repo) Lookup(ctx context.Context, id model.UserID) (model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM users
		WHERE id = $1
	`, int64(id)).Scan(&u.ID, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user %d: %w", id, err)
	}
	return u, nil
}
