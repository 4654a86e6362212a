package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"reviewnotify/internal/types"
)

// UserRepository provides read access to internal review-system identities.
// It implements types.UserStore; the email column feeds the recipient
// resolver.
type UserRepository struct {
	db DBTX
}

var _ types.UserStore = (*UserRepository)(nil)

// NewUserRepository creates a UserRepository backed by the given connection.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetUser fetches one user by internal id. Returns types.ErrNotFound when the
// user does not exist.
func (r *UserRepository) GetUser(ctx context.Context, id string) (types.User, error) {
	var u types.User
	row := r.db.QueryRow(ctx,
		`SELECT id, COALESCE(full_name, ''), COALESCE(email, '')
		 FROM users
		 WHERE id = $1`,
		id,
	)
	if err := row.Scan(&u.ID, &u.FullName, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.User{}, types.ErrNotFound
		}
		return types.User{}, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch user", err)
	}
	return u, nil
}
