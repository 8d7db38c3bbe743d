package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/user"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
)

// ==================== Users ====================

type userDirectory struct{ s *Store }

func (s *Store) Users() user.Directory { return userDirectory{s} }

func (r userDirectory) GetByID(_ context.Context, id int64) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// ==================== Subscriptions ====================

type subscriptionRepo struct{ s *Store }

func (s *Store) Subscriptions() subscription.SubscriptionRepository { return subscriptionRepo{s} }

func sortSubsNewestFirst(subs []subscription.Subscription) {
	slices.SortFunc(subs, func(a, b subscription.Subscription) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func (r subscriptionRepo) Create(_ context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.Clock()
	sub.ID = r.s.nextID()
	sub.CreatedAt, sub.UpdatedAt = now, now
	r.s.subs[sub.ID] = sub
	return sub, nil
}

func (r subscriptionRepo) GetByID(_ context.Context, id int64) (subscription.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subs[id]
	if !ok {
		return subscription.Subscription{}, pgx.ErrNoRows
	}
	return sub, nil
}

func (r subscriptionRepo) List(_ context.Context, filter subscription.ListFilter) ([]subscription.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []subscription.Subscription
	for _, sub := range r.s.subs {
		if filter.UserID != nil && sub.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && sub.Status != *filter.Status {
			continue
		}
		out = append(out, sub)
	}
	sortSubsNewestFirst(out)

	if filter.Offset > 0 {
		out = out[min(filter.Offset, len(out)):]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r subscriptionRepo) UpdateStatus(_ context.Context, id int64, status subscription.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	sub.Status = status
	sub.UpdatedAt = r.s.Clock()
	r.s.subs[id] = sub
	return nil
}

func (r subscriptionRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.subs[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.subs, id)
	return nil
}

func (r subscriptionRepo) GetDueForBilling(_ context.Context, now time.Time) ([]subscription.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []subscription.Subscription
	for _, sub := range r.s.subs {
		if sub.IsLive(now) && !sub.NextBillingDate.After(now) {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b subscription.Subscription) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r subscriptionRepo) AdvanceBillingDate(_ context.Context, id int64, expected, next, billedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subs[id]
	if !ok || !sub.NextBillingDate.Equal(expected) {
		return false, nil
	}
	sub.NextBillingDate = next
	sub.LastBillingDate = &billedAt
	sub.UpdatedAt = r.s.Clock()
	r.s.subs[id] = sub
	return true, nil
}

func (r subscriptionRepo) GetActiveForUser(_ context.Context, userID int64, now time.Time) (subscription.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var live []subscription.Subscription
	for _, sub := range r.s.subs {
		if sub.UserID == userID && sub.IsLive(now) {
			live = append(live, sub)
		}
	}
	if len(live) == 0 {
		return subscription.Subscription{}, pgx.ErrNoRows
	}
	sortSubsNewestFirst(live)
	return live[0], nil
}

func (r subscriptionRepo) CancelExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, sub := range r.s.subs {
		if sub.Status == subscription.StatusActive && sub.IsExpired(now) {
			sub.Status = subscription.StatusCancelled
			sub.UpdatedAt = r.s.Clock()
			r.s.subs[id] = sub
			n++
		}
	}
	return n, nil
}

func (r subscriptionRepo) CountByStatus(_ context.Context) (map[subscription.Status]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[subscription.Status]int64)
	for _, sub := range r.s.subs {
		counts[sub.Status]++
	}
	return counts, nil
}

// ==================== Processed orders ====================

type orderRepo struct{ s *Store }

func (s *Store) Orders() subscription.ProcessedOrderRepository { return orderRepo{s} }

func (r orderRepo) Claim(_ context.Context, orderID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[orderID]; ok {
		return false, nil
	}
	r.s.orders[orderID] = subscription.ProcessedOrder{OrderID: orderID, ProcessedAt: r.s.Clock()}
	return true, nil
}

func (r orderRepo) Attach(_ context.Context, orderID string, subscriptionID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	po, ok := r.s.orders[orderID]
	if !ok {
		return pgx.ErrNoRows
	}
	po.SubscriptionID = &subscriptionID
	r.s.orders[orderID] = po
	return nil
}

func (r orderRepo) Get(_ context.Context, orderID string) (subscription.ProcessedOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	po, ok := r.s.orders[orderID]
	if !ok {
		return subscription.ProcessedOrder{}, pgx.ErrNoRows
	}
	return po, nil
}

// ==================== Invoices ====================

type invoiceRepo struct{ s *Store }

func (s *Store) Invoices() invoice.InvoiceRepository { return invoiceRepo{s} }

func (r invoiceRepo) Create(_ context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.invoiceFailures[inv.SubscriptionID]; err != nil {
		return invoice.Invoice{}, err
	}
	for _, existing := range r.s.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return invoice.Invoice{}, invoice.ErrInvoiceNumberTaken
		}
	}
	inv.ID = r.s.nextID()
	inv.CreatedAt = r.s.Clock()
	r.s.invoices[inv.ID] = inv
	return inv, nil
}

func (r invoiceRepo) GetByID(_ context.Context, id int64) (invoice.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.invoices[id]
	if !ok {
		return invoice.Invoice{}, pgx.ErrNoRows
	}
	return inv, nil
}

func (r invoiceRepo) filter(keep func(invoice.Invoice) bool) []invoice.Invoice {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []invoice.Invoice
	for _, inv := range r.s.invoices {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	slices.SortFunc(out, func(a, b invoice.Invoice) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r invoiceRepo) ListBySubscription(_ context.Context, subscriptionID int64) ([]invoice.Invoice, error) {
	out := r.filter(func(inv invoice.Invoice) bool { return inv.SubscriptionID == subscriptionID })
	slices.Reverse(out)
	return out, nil
}

func (r invoiceRepo) List(_ context.Context) ([]invoice.Invoice, error) {
	return r.filter(func(invoice.Invoice) bool { return true }), nil
}

func (r invoiceRepo) MarkPaid(_ context.Context, id int64, method, transactionID string, paidAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.invoices[id]
	if !ok || inv.Status != invoice.StatusPending {
		return false, nil
	}
	inv.Status = invoice.StatusPaid
	inv.PaidAt = &paidAt
	inv.PaymentMethod = &method
	if transactionID != "" {
		inv.TransactionID = &transactionID
	}
	r.s.invoices[id] = inv
	return true, nil
}

func (r invoiceRepo) DeleteBySubscription(_ context.Context, subscriptionID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, inv := range r.s.invoices {
		if inv.SubscriptionID == subscriptionID {
			delete(r.s.invoices, id)
			n++
		}
	}
	return n, nil
}

func (r invoiceRepo) CountByStatus(_ context.Context) (map[invoice.Status]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[invoice.Status]int64)
	for _, inv := range r.s.invoices {
		counts[inv.Status]++
	}
	return counts, nil
}

// ==================== User URLs ====================

type userURLRepo struct{ s *Store }

func (s *Store) UserURLs() whitelist.UserURLRepository { return userURLRepo{s} }

func (r userURLRepo) filter(keep func(whitelist.UserURL) bool) []whitelist.UserURL {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filterLocked(keep)
}

func (r userURLRepo) filterLocked(keep func(whitelist.UserURL) bool) []whitelist.UserURL {
	var out []whitelist.UserURL
	for _, u := range r.s.urls {
		if keep(u) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b whitelist.UserURL) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r userURLRepo) Create(_ context.Context, u whitelist.UserURL) (whitelist.UserURL, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u.Status == whitelist.URLStatusActive {
		for _, existing := range r.s.urls {
			if existing.Status == whitelist.URLStatusActive &&
				existing.UserID == u.UserID && existing.SubscriptionID == u.SubscriptionID {
				return whitelist.UserURL{}, whitelist.ErrActiveURLExists
			}
		}
	}
	now := r.s.Clock()
	u.ID = r.s.nextID()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.urls[u.ID] = u
	return u, nil
}

func (r userURLRepo) GetByID(_ context.Context, id int64) (whitelist.UserURL, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.urls[id]
	if !ok {
		return whitelist.UserURL{}, pgx.ErrNoRows
	}
	return u, nil
}

func (r userURLRepo) GetActive(_ context.Context, userID, subscriptionID int64) (whitelist.UserURL, error) {
	found := r.filter(func(u whitelist.UserURL) bool {
		return u.Status == whitelist.URLStatusActive && u.UserID == userID && u.SubscriptionID == subscriptionID
	})
	if len(found) == 0 {
		return whitelist.UserURL{}, pgx.ErrNoRows
	}
	return found[0], nil
}

func (r userURLRepo) FindActiveByURL(_ context.Context, url string) ([]whitelist.UserURL, error) {
	return r.filter(func(u whitelist.UserURL) bool {
		return u.Status == whitelist.URLStatusActive && u.URL == url
	}), nil
}

func (r userURLRepo) update(id int64, fn func(*whitelist.UserURL)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.urls[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&u)
	u.UpdatedAt = r.s.Clock()
	r.s.urls[id] = u
	return nil
}

func (r userURLRepo) UpdateURL(_ context.Context, id int64, url string) error {
	return r.update(id, func(u *whitelist.UserURL) { u.URL = url })
}

func (r userURLRepo) SetStatus(_ context.Context, id int64, status whitelist.URLStatus) error {
	return r.update(id, func(u *whitelist.UserURL) { u.Status = status })
}

func (r userURLRepo) ListBySubscription(_ context.Context, subscriptionID int64) ([]whitelist.UserURL, error) {
	return r.filter(func(u whitelist.UserURL) bool { return u.SubscriptionID == subscriptionID }), nil
}

func (r userURLRepo) ListByUser(_ context.Context, userID int64) ([]whitelist.UserURL, error) {
	out := r.filter(func(u whitelist.UserURL) bool { return u.UserID == userID })
	slices.Reverse(out)
	return out, nil
}

func (r userURLRepo) List(_ context.Context) ([]whitelist.UserURL, error) {
	out := r.filter(func(whitelist.UserURL) bool { return true })
	slices.SortFunc(out, func(a, b whitelist.UserURL) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r userURLRepo) DeleteBySubscription(_ context.Context, subscriptionID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, u := range r.s.urls {
		if u.SubscriptionID == subscriptionID {
			delete(r.s.urls, id)
			n++
		}
	}
	return n, nil
}

func (r userURLRepo) ManagedURLs(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range r.filter(func(whitelist.UserURL) bool { return true }) {
		if _, ok := seen[u.URL]; !ok {
			seen[u.URL] = struct{}{}
			out = append(out, u.URL)
		}
	}
	return out, nil
}

func (r userURLRepo) WantedURLs(_ context.Context, now time.Time) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []string
	for _, u := range r.filterLocked(func(u whitelist.UserURL) bool { return u.Status == whitelist.URLStatusActive }) {
		if sub, ok := r.s.subs[u.SubscriptionID]; ok && sub.IsLive(now) {
			out = append(out, u.URL)
		}
	}
	return out, nil
}

func (r userURLRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, u := range r.s.urls {
		if u.Status != whitelist.URLStatusActive {
			continue
		}
		sub, ok := r.s.subs[u.SubscriptionID]
		if ok && sub.IsLive(now) {
			continue
		}
		u.Status = whitelist.URLStatusExpired
		u.UpdatedAt = r.s.Clock()
		r.s.urls[id] = u
		n++
	}
	return n, nil
}

func (r userURLRepo) CountByStatus(_ context.Context) (map[whitelist.URLStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[whitelist.URLStatus]int64)
	for _, u := range r.s.urls {
		counts[u.Status]++
	}
	return counts, nil
}

// ==================== Options ====================

type optionRepo struct{ s *Store }

func (s *Store) Options() whitelist.OptionRepository { return optionRepo{s} }

func (r optionRepo) Get(_ context.Context, name string) (whitelist.Option, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	opt, ok := r.s.options[name]
	if !ok {
		return whitelist.Option{Name: name}, nil
	}
	opt.Value = slices.Clone(opt.Value)
	return opt, nil
}

func (r optionRepo) CompareAndSwap(_ context.Context, name string, value []byte, expectedVersion int64) (bool, error) {
	r.s.mu.Lock()
	hook := r.s.beforeCAS
	r.s.mu.Unlock()
	if hook != nil {
		hook(name)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.optionWriteErr != nil {
		return false, r.s.optionWriteErr
	}
	if r.s.options[name].Version != expectedVersion {
		return false, nil
	}
	r.s.options[name] = whitelist.Option{Name: name, Value: slices.Clone(value), Version: expectedVersion + 1}
	return true, nil
}
