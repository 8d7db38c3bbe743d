package notification

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/report"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContent(t *testing.T) *Content {
	t.Helper()
	c, err := NewContent("USD")
	require.NoError(t, err)
	return c
}

var alice = user.User{ID: 1, Email: "alice@example.com", DisplayName: "Alice"}

func TestBuildWelcome(t *testing.T) {
	c := newContent(t)
	expiry := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	msg, err := c.BuildWelcome(alice, subscription.Subscription{
		ID:              12,
		Type:            subscription.TypeMonthly,
		Amount:          decimal.RequireFromString("19.9"),
		NextBillingDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:      &expiry,
	})

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Your subscription is active", msg.Subject)
	assert.Contains(t, msg.HTML, "Welcome, Alice")
	assert.Contains(t, msg.HTML, "19.90 USD")
	assert.Contains(t, msg.HTML, "2025-02-01")
	assert.Contains(t, msg.HTML, "2025-07-01")
}

func TestBuildInvoice_IncludesPaymentLink(t *testing.T) {
	c := newContent(t)

	msg, err := c.BuildInvoice(alice, invoice.Invoice{
		SubscriptionID: 12,
		InvoiceNumber:  "INV-2025-000012-ABC123",
		Amount:         decimal.RequireFromString("10"),
		CreatedAt:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}, "https://billing.example.com/api/v1/pay/5?token=abc")

	require.NoError(t, err)
	assert.Equal(t, "Invoice INV-2025-000012-ABC123", msg.Subject)
	assert.Contains(t, msg.HTML, "10.00 USD")
	assert.Contains(t, msg.HTML, `href="https://billing.example.com/api/v1/pay/5?token=abc"`)
}

func TestBuildPaymentConfirmation(t *testing.T) {
	c := newContent(t)
	paidAt := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	method := "card"

	msg, err := c.BuildPaymentConfirmation(alice, invoice.Invoice{
		InvoiceNumber: "INV-2025-000012-ABC123",
		Amount:        decimal.RequireFromString("10"),
		PaidAt:        &paidAt,
		PaymentMethod: &method,
	})

	require.NoError(t, err)
	assert.Equal(t, "Payment received for INV-2025-000012-ABC123", msg.Subject)
	assert.Contains(t, msg.HTML, "card")
}

func TestBuildHousekeepingReport(t *testing.T) {
	c := newContent(t)

	msg, err := c.BuildHousekeepingReport("ops@example.com", report.HousekeepingSummary{
		GeneratedAt:            time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		CancelledSubscriptions: 2,
		ExpiredURLs:            3,
		Subscriptions:          map[string]int64{"paused": 1, "active": 4},
		WhitelistEntries:       7,
	})

	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", msg.To)
	assert.Equal(t, "Daily housekeeping 2025-03-02", msg.Subject)
	assert.Contains(t, msg.HTML, "Subscriptions cancelled (expired): 2")
	assert.Contains(t, msg.HTML, "URLs expired: 3")
	assert.Less(t, strings.Index(msg.HTML, "active: 4"), strings.Index(msg.HTML, "paused: 1"))
}
