package user

import "context"

// Directory looks up platform users.
type Directory interface {
	// GetByID returns pgx.ErrNoRows when the user does not exist.
	GetByID(ctx context.Context, id int64) (User, error)
}
