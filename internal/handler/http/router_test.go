package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitepass/subscription-whitelist/internal/config"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/middleware"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
	"github.com/sitepass/subscription-whitelist/internal/pkg/cron"
	"github.com/sitepass/subscription-whitelist/internal/pkg/jwt"
	"github.com/sitepass/subscription-whitelist/internal/pkg/metrics"
	"github.com/sitepass/subscription-whitelist/internal/pkg/paylink"
	"github.com/sitepass/subscription-whitelist/internal/repository/memory"
	exportsvc "github.com/sitepass/subscription-whitelist/internal/service/export"
	invoicesvc "github.com/sitepass/subscription-whitelist/internal/service/invoice"
	subscriptionsvc "github.com/sitepass/subscription-whitelist/internal/service/subscription"
	whitelistsvc "github.com/sitepass/subscription-whitelist/internal/service/whitelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret        = "test-secret-key-for-jwt"
	testCallbackToken = "callback-token-0123456789"
	testOption        = "site_builder_settings"
	testField         = "myTemplatesWhitelist"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	store   *memory.Store
	jwt     jwt.Service
	handler http.Handler
	alice   int64
	bob     int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	clock := func() time.Time { return testNow }
	store.Clock = clock
	store.PutOption(testOption, `{"theme":"dark","`+testField+`":"https://partner.example.com"}`)
	alice := store.AddUser("alice@example.com", "Alice").ID
	bob := store.AddUser("bob@example.com", "Bob").ID

	m := metrics.New()
	signer, err := paylink.NewSigner("payment-link-secret-0123456789", "https://billing.example.com")
	require.NoError(t, err)

	reconciler := whitelistsvc.NewReconciler(whitelistsvc.Deps{
		URLs:          store.UserURLs(),
		Subscriptions: store.Subscriptions(),
		Options:       store.Options(),
		Config: config.WhitelistConfig{
			OptionName:   testOption,
			Field:        testField,
			CASAttempts:  3,
			CASBaseDelay: time.Millisecond,
		},
		Metrics: m,
	})
	subs := subscriptionsvc.NewSubscriptionService(subscriptionsvc.Deps{
		Subscriptions: store.Subscriptions(),
		Orders:        store.Orders(),
		Users:         store.Users(),
		URLs:          store.UserURLs(),
		Invoices:      store.Invoices(),
		Reconciler:    reconciler,
		Tx:            store,
		Clock:         clock,
	})
	invoices := invoicesvc.NewInvoiceService(invoicesvc.Deps{
		Invoices:      store.Invoices(),
		Subscriptions: subs,
		Signer:        signer,
		Metrics:       m,
		Prefix:        "INV",
		Clock:         clock,
	})

	scheduler := cron.NewScheduler(m)
	scheduler.AddJob("noop", time.Hour, func(context.Context) error { return nil })
	scheduler.AddJob("broken", time.Hour, func(context.Context) error { return errors.New("boom") })

	jwtService := jwt.NewJWTService(testSecret, "1h")
	router := NewRouter(RouterConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		CallbackToken:  testCallbackToken,
		Metrics:        m.Handler(),
	}, jwtService, Handlers{
		Subscription: NewSubscriptionHandler(subs, clock),
		Invoice:      NewInvoiceHandler(invoices, "USD"),
		Whitelist:    NewWhitelistHandler(reconciler, clock),
		Job:          NewJobHandler(scheduler),
		Export:       NewExportHandler(exportsvc.NewExportService(store.Subscriptions(), store.Invoices(), store.UserURLs()), clock),
		Hook:         NewHookHandler(subs, invoices),
	})

	return &testServer{t: t, store: store, jwt: jwtService, handler: router, alice: alice, bob: bob}
}

func (s *testServer) token(userID int64, admin bool) string {
	s.t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(userID, "user@example.com", admin)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) adminToken() string { return s.token(999, true) }

// do sends a request with an optional bearer token and JSON body.
func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) hook(path string, body any, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.CallbackTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) response.Response {
	t.Helper()
	var raw struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.Response
}

func (s *testServer) createSubscription(userID int64) subscription.Subscription {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/admin/subscriptions", s.adminToken(), map[string]any{
		"user_id":           userID,
		"subscription_type": "monthly",
		"amount":            "19.90",
		"duration_months":   12,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub subscription.Subscription
	decode(s.t, rec, &sub)
	return sub
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/me/subscription", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tampered token", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/me/subscription", s.token(s.alice, false)+"x", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non admin on admin route", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/admin/subscriptions", s.token(s.alice, false), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", decode(t, rec, nil).Error.Code)
	})

	t.Run("token from another issuer", func(t *testing.T) {
		other := jwt.NewJWTService("some-other-secret", "1h")
		token, _, err := other.GenerateAccessToken(s.alice, "alice@example.com", true)
		require.NoError(t, err)
		rec := s.do(http.MethodGet, "/api/v1/admin/subscriptions", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSubscriptionAdmin(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	sub := s.createSubscription(s.alice)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.True(t, sub.Amount.Equal(decimal.RequireFromString("19.90")))
	assert.Equal(t, testNow.AddDate(0, 1, 0), sub.NextBillingDate.UTC())

	t.Run("validation errors carry details", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/admin/subscriptions", admin, map[string]any{
			"user_id":           s.alice,
			"subscription_type": "weekly",
			"amount":            "0",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decode(t, rec, nil)
		assert.Contains(t, resp.Error.Details, "subscription_type")
		assert.Contains(t, resp.Error.Details, "amount")
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/admin/subscriptions", admin, map[string]any{
			"user_id":           4242,
			"subscription_type": "monthly",
			"amount":            "5",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("list filters by user", func(t *testing.T) {
		s.createSubscription(s.bob)
		rec := s.do(http.MethodGet, "/api/v1/admin/subscriptions?user_id="+itoa(s.alice), admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var subs []subscription.Subscription
		decode(t, rec, &subs)
		require.Len(t, subs, 1)
		assert.Equal(t, sub.ID, subs[0].ID)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/admin/subscriptions/777", admin, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/admin/subscriptions/abc", admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pause and activate", func(t *testing.T) {
		path := "/api/v1/admin/subscriptions/" + itoa(sub.ID)

		rec := s.do(http.MethodPost, path+"/pause", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var paused subscription.Subscription
		decode(t, rec, &paused)
		assert.Equal(t, subscription.StatusPaused, paused.Status)

		rec = s.do(http.MethodPost, path+"/activate", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var active subscription.Subscription
		decode(t, rec, &active)
		assert.Equal(t, subscription.StatusActive, active.Status)
	})
}

func TestDeleteSubscription(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()
	sub := s.createSubscription(s.alice)
	path := "/api/v1/admin/subscriptions/" + itoa(sub.ID)

	rec := s.do(http.MethodPost, "/api/v1/me/url", s.token(s.alice, false), map[string]any{
		"subscription_id": sub.ID,
		"url":             "https://alice.example.com/",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodDelete, path, admin, map[string]any{"confirm": "yes"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodDelete, path, admin, map[string]any{"confirm": "DELETE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result subscription.DeleteResult
	decode(t, rec, &result)
	assert.Equal(t, 1, result.URLsRemoved)

	rec = s.do(http.MethodGet, "/api/v1/admin/whitelist", admin, nil)
	var lines []string
	decode(t, rec, &lines)
	assert.Equal(t, []string{"https://partner.example.com"}, lines)

	rec = s.do(http.MethodGet, path, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitURL(t *testing.T) {
	s := newTestServer(t)
	aliceSub := s.createSubscription(s.alice)
	bobSub := s.createSubscription(s.bob)
	alice := s.token(s.alice, false)

	t.Run("accepted and normalized", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/me/url", alice, map[string]any{
			"subscription_id": aliceSub.ID,
			"url":             "HTTPS://Alice.Example.com/shop/",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res struct {
			Success bool   `json:"success"`
			URL     string `json:"url"`
		}
		decode(t, rec, &res)
		assert.True(t, res.Success)
		assert.Equal(t, "https://alice.example.com/shop", res.URL)

		rec = s.do(http.MethodGet, "/api/v1/admin/whitelist", s.adminToken(), nil)
		var lines []string
		decode(t, rec, &lines)
		assert.Equal(t, []string{"https://partner.example.com", "https://alice.example.com/shop"}, lines)
	})

	t.Run("invalid url", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/me/url", alice, map[string]any{
			"subscription_id": aliceSub.ID,
			"url":             "ftp://nope",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode(t, rec, nil).Error.Details, "url")
	})

	t.Run("someone else's subscription", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/me/url", alice, map[string]any{
			"subscription_id": bobSub.ID,
			"url":             "https://alice2.example.com",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "INVALID_STATE", decode(t, rec, nil).Error.Code)
	})

	t.Run("url taken by another user", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/me/url", s.token(s.bob, false), map[string]any{
			"subscription_id": bobSub.ID,
			"url":             "https://alice.example.com/shop",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CONFLICT", decode(t, rec, nil).Error.Code)
	})

	t.Run("missing subscription id", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/me/url", alice, map[string]any{"url": "https://x.example.com"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/me/url", alice, map[string]any{"site": "https://x.example.com"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("my urls", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/me/urls", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var urls []struct {
			ID  int64  `json:"id"`
			URL string `json:"url"`
		}
		decode(t, rec, &urls)
		require.Len(t, urls, 1)

		rec = s.do(http.MethodDelete, "/api/v1/admin/urls/"+itoa(urls[0].ID), s.adminToken(), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(http.MethodGet, "/api/v1/admin/whitelist", s.adminToken(), nil)
		var lines []string
		decode(t, rec, &lines)
		assert.Equal(t, []string{"https://partner.example.com"}, lines)
	})
}

func TestMySubscription(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/me/subscription", s.token(s.alice, false), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"data"`)

	sub := s.createSubscription(s.alice)
	rec = s.do(http.MethodGet, "/api/v1/me/subscription", s.token(s.alice, false), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got subscription.Subscription
	decode(t, rec, &got)
	assert.Equal(t, sub.ID, got.ID)
}

func TestHooks(t *testing.T) {
	s := newTestServer(t)
	purchase := map[string]any{
		"order_id":          "order-1001",
		"user_id":           s.alice,
		"subscription_type": "yearly",
		"amount":            "120",
	}

	t.Run("callback token required", func(t *testing.T) {
		rec := s.hook("/api/v1/hooks/purchase-completed", purchase, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		rec = s.hook("/api/v1/hooks/purchase-completed", purchase, "wrong-token")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	var first subscription.PurchaseResult
	t.Run("purchase completed once", func(t *testing.T) {
		rec := s.hook("/api/v1/hooks/purchase-completed", purchase, testCallbackToken)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &first)
		assert.False(t, first.AlreadyProcessed)

		rec = s.hook("/api/v1/hooks/purchase-completed", purchase, testCallbackToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var again subscription.PurchaseResult
		decode(t, rec, &again)
		assert.True(t, again.AlreadyProcessed)
		assert.Equal(t, first.SubscriptionID, again.SubscriptionID)
	})

	t.Run("payment confirmed is idempotent", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/admin/subscriptions/"+itoa(first.SubscriptionID)+"/invoices", s.adminToken(), map[string]any{"send_email": false})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var inv struct {
			ID int64 `json:"id"`
		}
		decode(t, rec, &inv)

		paid := map[string]any{"invoice_id": inv.ID, "payment_method": "card", "transaction_id": "tx-1"}
		rec = s.hook("/api/v1/hooks/payment-confirmed", paid, testCallbackToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Invoice marked as paid", decode(t, rec, nil).Message)

		rec = s.hook("/api/v1/hooks/payment-confirmed", paid, testCallbackToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var dup map[string]any
		decode(t, rec, &dup)
		assert.Equal(t, true, dup["already_paid"])
	})

	t.Run("payment for unknown invoice", func(t *testing.T) {
		rec := s.hook("/api/v1/hooks/payment-confirmed", map[string]any{"invoice_id": 9999, "payment_method": "card"}, testCallbackToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPaymentLink(t *testing.T) {
	s := newTestServer(t)
	sub := s.createSubscription(s.alice)

	rec := s.do(http.MethodPost, "/api/v1/admin/subscriptions/"+itoa(sub.ID)+"/invoices", s.adminToken(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv struct {
		ID            int64  `json:"id"`
		InvoiceNumber string `json:"invoice_number"`
	}
	decode(t, rec, &inv)

	signer, err := paylink.NewSigner("payment-link-secret-0123456789", "https://billing.example.com")
	require.NoError(t, err)
	link, err := url.Parse(signer.Link(inv.ID, inv.InvoiceNumber))
	require.NoError(t, err)

	rec = s.do(http.MethodGet, link.RequestURI(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view map[string]string
	decode(t, rec, &view)
	assert.Equal(t, inv.InvoiceNumber, view["invoice_number"])
	assert.Equal(t, "19.90", view["amount"])
	assert.Equal(t, "USD", view["currency"])
	assert.Equal(t, "pending", view["status"])

	rec = s.do(http.MethodGet, "/api/v1/pay/"+itoa(inv.ID)+"?token=deadbeef", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/admin/subscriptions/"+itoa(sub.ID)+"/invoices", s.adminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode(t, rec, nil).Meta.TotalItems)
}

func TestJobs(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	rec := s.do(http.MethodGet, "/api/v1/admin/jobs", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []cron.JobInfo
	decode(t, rec, &jobs)
	assert.Len(t, jobs, 2)

	rec = s.do(http.MethodPost, "/api/v1/admin/jobs/noop/run", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/jobs/missing/run", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/jobs/broken/run", admin, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An unexpected error occurred", decode(t, rec, nil).Error.Message)
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	s.createSubscription(s.alice)
	admin := s.adminToken()

	rec := s.do(http.MethodGet, "/api/v1/admin/export/subscriptions", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "subscriptions-20250310.csv")

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "id", rows[0][0])

	rec = s.do(http.MethodGet, "/api/v1/admin/export/orders", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMetricsAndHeartbeat(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = s.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
