package postgresql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 30, 10, 0, 0, 0, time.UTC)

func createSubscription(t *testing.T, repo subscription.SubscriptionRepository, userID int64, expiry *time.Time) subscription.Subscription {
	t.Helper()
	sub, err := repo.Create(context.Background(), subscription.Subscription{
		UserID:          userID,
		Type:            subscription.TypeMonthly,
		Amount:          decimal.RequireFromString("19.90"),
		Status:          subscription.StatusActive,
		StartDate:       base,
		NextBillingDate: subscription.TypeMonthly.Advance(base),
		ExpiryDate:      expiry,
	})
	require.NoError(t, err)
	return sub
}

func TestSubscriptionRepository(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewSubscriptionRepository(setup.DB)
	userID := setup.CreateUser(t, "alice@example.com")

	sub := createSubscription(t, repo, userID, nil)
	assert.NotZero(t, sub.ID)

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("19.90")))
	assert.Equal(t, time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), got.NextBillingDate.UTC())
	assert.Nil(t, got.ExpiryDate)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	t.Run("due and advance with compare-and-swap", func(t *testing.T) {
		due, err := repo.GetDueForBilling(ctx, got.NextBillingDate)
		require.NoError(t, err)
		require.Len(t, due, 1)

		next := subscription.TypeMonthly.Advance(got.NextBillingDate)
		ok, err := repo.AdvanceBillingDate(ctx, sub.ID, got.NextBillingDate, next, got.NextBillingDate)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.AdvanceBillingDate(ctx, sub.ID, got.NextBillingDate, next, got.NextBillingDate)
		require.NoError(t, err)
		assert.False(t, ok, "second advance from the same anchor must lose")
	})

	t.Run("active for user and cancel expired", func(t *testing.T) {
		expired := base.AddDate(0, 1, 0)
		old := createSubscription(t, repo, userID, &expired)

		live, err := repo.GetActiveForUser(ctx, userID, base.AddDate(0, 2, 0))
		require.NoError(t, err)
		assert.Equal(t, sub.ID, live.ID)

		n, err := repo.CancelExpired(ctx, base.AddDate(0, 2, 0))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		cancelled, err := repo.GetByID(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, cancelled.Status)

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[subscription.StatusActive])
		assert.Equal(t, int64(1), counts[subscription.StatusCancelled])
	})
}

func TestProcessedOrderRepository(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	orders := postgresql.NewProcessedOrderRepository(setup.DB)
	sub := createSubscription(t, postgresql.NewSubscriptionRepository(setup.DB), setup.CreateUser(t, "bob@example.com"), nil)

	claimed, err := orders.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = orders.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, orders.Attach(ctx, "order-1", sub.ID))
	order, err := orders.Get(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, order.SubscriptionID)
	assert.Equal(t, sub.ID, *order.SubscriptionID)
}

func TestInvoiceRepository(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	userID := setup.CreateUser(t, "carol@example.com")
	sub := createSubscription(t, postgresql.NewSubscriptionRepository(setup.DB), userID, nil)
	repo := postgresql.NewInvoiceRepository(setup.DB)

	inv := invoice.Invoice{
		SubscriptionID: sub.ID,
		UserID:         userID,
		InvoiceNumber:  "INV-2025-000001-ABC123",
		Amount:         sub.Amount,
		Status:         invoice.StatusPending,
	}
	created, err := repo.Create(ctx, inv)
	require.NoError(t, err)

	_, err = repo.Create(ctx, inv)
	assert.ErrorIs(t, err, invoice.ErrInvoiceNumberTaken)

	ok, err := repo.MarkPaid(ctx, created.ID, "card", "tx-1", base)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPaid(ctx, created.ID, "card", "tx-2", base)
	require.NoError(t, err)
	assert.False(t, ok)

	paid, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, paid.Status)
	require.NotNil(t, paid.TransactionID)
	assert.Equal(t, "tx-1", *paid.TransactionID)

	n, err := repo.DeleteBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUserURLRepository(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	subs := postgresql.NewSubscriptionRepository(setup.DB)
	repo := postgresql.NewUserURLRepository(setup.DB)

	userID := setup.CreateUser(t, "dave@example.com")
	live := createSubscription(t, subs, userID, nil)
	expiry := base.AddDate(0, 1, 0)
	ending := createSubscription(t, subs, userID, &expiry)

	first, err := repo.Create(ctx, whitelist.UserURL{UserID: userID, SubscriptionID: live.ID, URL: "https://a.example.com", Status: whitelist.URLStatusActive})
	require.NoError(t, err)
	_, err = repo.Create(ctx, whitelist.UserURL{UserID: userID, SubscriptionID: live.ID, URL: "https://b.example.com", Status: whitelist.URLStatusActive})
	assert.ErrorIs(t, err, whitelist.ErrActiveURLExists)

	_, err = repo.Create(ctx, whitelist.UserURL{UserID: userID, SubscriptionID: ending.ID, URL: "https://c.example.com", Status: whitelist.URLStatusActive})
	require.NoError(t, err)

	later := base.AddDate(0, 2, 0)
	wanted, err := repo.WantedURLs(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com"}, wanted)

	n, err := repo.ExpireStale(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	managed, err := repo.ManagedURLs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://a.example.com", "https://c.example.com"}, managed)

	found, err := repo.FindActiveByURL(ctx, "https://a.example.com")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)
}

func TestOptionRepository_CompareAndSwap(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewOptionRepository(setup.DB)

	opt, err := repo.Get(ctx, "site_builder_settings")
	require.NoError(t, err)
	assert.Zero(t, opt.Version)

	ok, err := repo.CompareAndSwap(ctx, "site_builder_settings", []byte(`{"myTemplatesWhitelist":""}`), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSwap(ctx, "site_builder_settings", []byte(`{}`), 0)
	require.NoError(t, err)
	assert.False(t, ok, "create must not overwrite")

	opt, err = repo.Get(ctx, "site_builder_settings")
	require.NoError(t, err)
	assert.Equal(t, int64(1), opt.Version)

	ok, err = repo.CompareAndSwap(ctx, "site_builder_settings", []byte(`{"myTemplatesWhitelist":"https://x.example.com"}`), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSwap(ctx, "site_builder_settings", []byte(`{}`), 1)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must lose")
}

func TestTransactor_RollsBack(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	subs := postgresql.NewSubscriptionRepository(setup.DB)
	userID := setup.CreateUser(t, "erin@example.com")

	errAbort := errors.New("abort")
	err := postgresql.NewTransactor(setup.DB).WithinTx(ctx, func(ctx context.Context) error {
		_, err := subs.Create(ctx, subscription.Subscription{
			UserID:          userID,
			Type:            subscription.TypeYearly,
			Amount:          decimal.NewFromInt(99),
			Status:          subscription.StatusActive,
			StartDate:       base,
			NextBillingDate: subscription.TypeYearly.Advance(base),
		})
		require.NoError(t, err)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	list, err := subs.List(ctx, subscription.ListFilter{UserID: &userID, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
}
