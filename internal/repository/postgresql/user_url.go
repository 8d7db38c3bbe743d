package postgresql

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
)

const userURLColumns = ` id, user_id, subscription_id, url, status, created_at, updated_at`

type userURLRepository struct {
	db *database.DB
}

func NewUserURLRepository(db *database.DB) whitelist.UserURLRepository {
	return &userURLRepository{db: db}
}

func scanUserURL(row pgx.Row) (whitelist.UserURL, error) {
	var u whitelist.UserURL
	err := row.Scan(&u.ID, &u.UserID, &u.SubscriptionID, &u.URL, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *userURLRepository) queryURLs(ctx context.Context, query string, args ...any) ([]whitelist.UserURL, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []whitelist.UserURL
	for rows.Next() {
		u, err := scanUserURL(rows)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (r *userURLRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *userURLRepository) Create(ctx context.Context, u whitelist.UserURL) (whitelist.UserURL, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO user_urls (user_id, subscription_id, url, status)
		VALUES ($1, $2, $3, $4)
		RETURNING` + userURLColumns

	created, err := scanUserURL(q.QueryRow(ctx, query, u.UserID, u.SubscriptionID, u.URL, u.Status))
	if isUniqueViolation(err, "user_urls_one_active_per_subscription") {
		return whitelist.UserURL{}, whitelist.ErrActiveURLExists
	}
	return created, err
}

func (r *userURLRepository) GetByID(ctx context.Context, id int64) (whitelist.UserURL, error) {
	q := GetQuerier(ctx, r.db)
	return scanUserURL(q.QueryRow(ctx, `SELECT`+userURLColumns+` FROM user_urls WHERE id = $1`, id))
}

func (r *userURLRepository) GetActive(ctx context.Context, userID, subscriptionID int64) (whitelist.UserURL, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT` + userURLColumns + `
		FROM user_urls
		WHERE user_id = $1 AND subscription_id = $2 AND status = 'active'
	`
	return scanUserURL(q.QueryRow(ctx, query, userID, subscriptionID))
}

func (r *userURLRepository) FindActiveByURL(ctx context.Context, url string) ([]whitelist.UserURL, error) {
	query := `SELECT` + userURLColumns + `
		FROM user_urls
		WHERE url = $1 AND status = 'active'
		ORDER BY id
	`
	return r.queryURLs(ctx, query, url)
}

func (r *userURLRepository) UpdateURL(ctx context.Context, id int64, url string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE user_urls SET url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userURLRepository) SetStatus(ctx context.Context, id int64, status whitelist.URLStatus) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE user_urls SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userURLRepository) ListBySubscription(ctx context.Context, subscriptionID int64) ([]whitelist.UserURL, error) {
	return r.queryURLs(ctx, `SELECT`+userURLColumns+` FROM user_urls WHERE subscription_id = $1 ORDER BY created_at, id`, subscriptionID)
}

func (r *userURLRepository) ListByUser(ctx context.Context, userID int64) ([]whitelist.UserURL, error) {
	return r.queryURLs(ctx, `SELECT`+userURLColumns+` FROM user_urls WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *userURLRepository) List(ctx context.Context) ([]whitelist.UserURL, error) {
	return r.queryURLs(ctx, `SELECT`+userURLColumns+` FROM user_urls ORDER BY id`)
}

func (r *userURLRepository) DeleteBySubscription(ctx context.Context, subscriptionID int64) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM user_urls WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *userURLRepository) ManagedURLs(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT url FROM user_urls`)
}

func (r *userURLRepository) WantedURLs(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT u.url
		FROM user_urls u
		JOIN subscriptions s ON s.id = u.subscription_id
		WHERE u.status = 'active'
		  AND s.status = 'active'
		  AND (s.expiry_date IS NULL OR s.expiry_date > $1)
		ORDER BY u.created_at, u.id
	`
	return r.queryStrings(ctx, query, now)
}

func (r *userURLRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE user_urls u
		SET status = 'expired', updated_at = NOW()
		FROM subscriptions s
		WHERE s.id = u.subscription_id
		  AND u.status = 'active'
		  AND (s.status <> 'active' OR (s.expiry_date IS NOT NULL AND s.expiry_date <= $1))
	`

	tag, err := q.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *userURLRepository) CountByStatus(ctx context.Context) (map[whitelist.URLStatus]int64, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT status, COUNT(*) FROM user_urls GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[whitelist.URLStatus]int64)
	for rows.Next() {
		var (
			status whitelist.URLStatus
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
