package postgresql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
)

// ==================== Subscription Repository ====================

const subscriptionColumns = `
	id, user_id, subscription_type, amount, status, start_date, next_billing_date,
	last_billing_date, expiry_date, created_at, updated_at`

type subscriptionRepository struct {
	db *database.DB
}

func NewSubscriptionRepository(db *database.DB) subscription.SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func scanSubscription(row pgx.Row) (subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.Type, &s.Amount, &s.Status, &s.StartDate, &s.NextBillingDate,
		&s.LastBillingDate, &s.ExpiryDate, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func collectSubscriptions(rows pgx.Rows) ([]subscription.Subscription, error) {
	defer rows.Close()

	var subs []subscription.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *subscriptionRepository) Create(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO subscriptions (
			user_id, subscription_type, amount, status, start_date, next_billing_date, expiry_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING` + subscriptionColumns

	return scanSubscription(q.QueryRow(ctx, query,
		sub.UserID, sub.Type, sub.Amount, sub.Status, sub.StartDate, sub.NextBillingDate, sub.ExpiryDate,
	))
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id int64) (subscription.Subscription, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1
	`

	return scanSubscription(q.QueryRow(ctx, query, id))
}

func (r *subscriptionRepository) List(ctx context.Context, filter subscription.ListFilter) ([]subscription.Subscription, error) {
	q := GetQuerier(ctx, r.db)

	var (
		conds []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT` + subscriptionColumns + ` FROM subscriptions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSubscriptions(rows)
}

func (r *subscriptionRepository) UpdateStatus(ctx context.Context, id int64, status subscription.Status) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE subscriptions
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, id int64) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *subscriptionRepository) GetDueForBilling(ctx context.Context, now time.Time) ([]subscription.Subscription, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active'
		  AND (expiry_date IS NULL OR expiry_date > $1)
		  AND next_billing_date <= $1
		ORDER BY next_billing_date, id
	`

	rows, err := q.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return collectSubscriptions(rows)
}

func (r *subscriptionRepository) AdvanceBillingDate(ctx context.Context, id int64, expected, next, billedAt time.Time) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE subscriptions
		SET next_billing_date = $3, last_billing_date = $4, updated_at = NOW()
		WHERE id = $1 AND next_billing_date = $2
	`

	tag, err := q.Exec(ctx, query, id, expected, next, billedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepository) GetActiveForUser(ctx context.Context, userID int64, now time.Time) (subscription.Subscription, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		  AND status = 'active'
		  AND (expiry_date IS NULL OR expiry_date > $2)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	return scanSubscription(q.QueryRow(ctx, query, userID, now))
}

func (r *subscriptionRepository) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE subscriptions
		SET status = 'cancelled', updated_at = NOW()
		WHERE status = 'active'
		  AND expiry_date IS NOT NULL
		  AND expiry_date <= $1
	`

	tag, err := q.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *subscriptionRepository) CountByStatus(ctx context.Context) (map[subscription.Status]int64, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT status, COUNT(*) FROM subscriptions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[subscription.Status]int64)
	for rows.Next() {
		var (
			status subscription.Status
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ==================== Processed Order Repository ====================

type processedOrderRepository struct {
	db *database.DB
}

func NewProcessedOrderRepository(db *database.DB) subscription.ProcessedOrderRepository {
	return &processedOrderRepository{db: db}
}

func (r *processedOrderRepository) Claim(ctx context.Context, orderID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO processed_orders (order_id)
		VALUES ($1)
		ON CONFLICT (order_id) DO NOTHING
	`

	tag, err := q.Exec(ctx, query, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *processedOrderRepository) Attach(ctx context.Context, orderID string, subscriptionID int64) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `UPDATE processed_orders SET subscription_id = $2 WHERE order_id = $1`, orderID, subscriptionID)
	return err
}

func (r *processedOrderRepository) Get(ctx context.Context, orderID string) (subscription.ProcessedOrder, error) {
	q := GetQuerier(ctx, r.db)

	var po subscription.ProcessedOrder
	err := q.QueryRow(ctx, `
		SELECT order_id, subscription_id, processed_at
		FROM processed_orders
		WHERE order_id = $1
	`, orderID).Scan(&po.OrderID, &po.SubscriptionID, &po.ProcessedAt)
	return po, err
}
