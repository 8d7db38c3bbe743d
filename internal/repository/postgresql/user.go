package postgresql

import (
	"context"

	"github.com/sitepass/subscription-whitelist/internal/domain/user"
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
)

type userRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) user.Directory {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (user.User, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, email, display_name, created_at
		FROM users
		WHERE id = $1
	`

	var u user.User
	err := q.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	return u, err
}
