package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
)

type optionRepository struct {
	db *database.DB
}

func NewOptionRepository(db *database.DB) whitelist.OptionRepository {
	return &optionRepository{db: db}
}

func (r *optionRepository) Get(ctx context.Context, name string) (whitelist.Option, error) {
	q := GetQuerier(ctx, r.db)

	opt := whitelist.Option{Name: name}
	var value string
	err := q.QueryRow(ctx, `SELECT value, version FROM options WHERE name = $1`, name).Scan(&value, &opt.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return opt, nil
	}
	if err != nil {
		return whitelist.Option{}, err
	}
	opt.Value = []byte(value)
	return opt, nil
}

func (r *optionRepository) CompareAndSwap(ctx context.Context, name string, value []byte, expectedVersion int64) (bool, error) {
	q := GetQuerier(ctx, r.db)

	if expectedVersion == 0 {
		tag, err := q.Exec(ctx, `
			INSERT INTO options (name, value, version)
			VALUES ($1, $2, 1)
			ON CONFLICT (name) DO NOTHING
		`, name, string(value))
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := q.Exec(ctx, `
		UPDATE options
		SET value = $2, version = version + 1, updated_at = NOW()
		WHERE name = $1 AND version = $3
	`, name, string(value), expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
