// Package memory is an in-process implementation of every repository
// interface. It backs unit tests and local demos; data is lost on exit.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/user"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
)

// Store holds all tables behind one mutex.
type Store struct {
	mu sync.Mutex

	users    map[int64]user.User
	subs     map[int64]subscription.Subscription
	invoices map[int64]invoice.Invoice
	urls     map[int64]whitelist.UserURL
	options  map[string]whitelist.Option
	orders   map[string]subscription.ProcessedOrder
	seq      int64

	// Clock stamps created_at and updated_at columns.
	Clock func() time.Time

	invoiceFailures map[int64]error
	optionWriteErr  error
	beforeCAS       func(name string)
}

func NewStore() *Store {
	return &Store{
		users:           make(map[int64]user.User),
		subs:            make(map[int64]subscription.Subscription),
		invoices:        make(map[int64]invoice.Invoice),
		urls:            make(map[int64]whitelist.UserURL),
		options:         make(map[string]whitelist.Option),
		orders:          make(map[string]subscription.ProcessedOrder),
		invoiceFailures: make(map[int64]error),
		Clock:           time.Now,
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// ==================== Test helpers ====================

// AddUser registers a platform user and returns it.
func (s *Store) AddUser(email, name string) user.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := user.User{ID: s.nextID(), Email: email, DisplayName: name, CreatedAt: s.Clock()}
	s.users[u.ID] = u
	return u
}

// PutOption overwrites an option the way an external editor would,
// bumping its version.
func (s *Store) PutOption(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opt := s.options[name]
	s.options[name] = whitelist.Option{Name: name, Value: []byte(value), Version: opt.Version + 1}
}

// OptionValue returns the raw stored value of an option.
func (s *Store) OptionValue(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.options[name].Value)
}

// FailInvoicesFor makes invoice creation for subscriptionID return err.
func (s *Store) FailInvoicesFor(subscriptionID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoiceFailures[subscriptionID] = err
}

// FailOptionWrites makes every CompareAndSwap return err (nil clears it).
func (s *Store) FailOptionWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optionWriteErr = err
}

// BeforeCompareAndSwap installs a hook that runs before each CAS, outside
// the store lock, so tests can simulate a concurrent writer.
func (s *Store) BeforeCompareAndSwap(fn func(name string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCAS = fn
}

// Counts returns the number of subscription, invoice and url rows.
func (s *Store) Counts() (subs, invoices, urls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs), len(s.invoices), len(s.urls)
}

// ==================== Transactor ====================

type snapshot struct {
	subs     map[int64]subscription.Subscription
	invoices map[int64]invoice.Invoice
	urls     map[int64]whitelist.UserURL
	orders   map[string]subscription.ProcessedOrder
}

// WithinTx restores the subscription, invoice, url and order tables when fn
// fails. It does not isolate concurrent callers.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snap := snapshot{
		subs:     maps.Clone(s.subs),
		invoices: maps.Clone(s.invoices),
		urls:     maps.Clone(s.urls),
		orders:   maps.Clone(s.orders),
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.subs, s.invoices, s.urls, s.orders = snap.subs, snap.invoices, snap.urls, snap.orders
		s.mu.Unlock()
		return err
	}
	return nil
}
