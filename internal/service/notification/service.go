package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/notification"
	"github.com/sitepass/subscription-whitelist/internal/domain/report"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/user"
	"github.com/sitepass/subscription-whitelist/internal/pkg/email"
)

// Config holds notifier configuration
type Config struct {
	AdminEmail  string
	WorkerCount int // default: 2
	QueueSize   int // default: 256
}

// Service renders messages synchronously and delivers them from background
// workers. Close drains the queue.
type Service struct {
	content *Content
	mailer  email.Mailer
	users   user.Directory
	config  Config

	queue  chan notification.Message
	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ notification.Notifier = (*Service)(nil)

// NewNotificationService starts the delivery workers.
func NewNotificationService(content *Content, mailer email.Mailer, users user.Directory, cfg Config) *Service {
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 256
	}

	s := &Service{
		content: content,
		mailer:  mailer,
		users:   users,
		config:  cfg,
		queue:   make(chan notification.Message, cfg.QueueSize),
		stopCh:  make(chan struct{}),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	return s
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.queue:
			s.deliver(id, msg)
		case <-s.stopCh:
			for {
				select {
				case msg := <-s.queue:
					s.deliver(id, msg)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) deliver(worker int, msg notification.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.mailer.Send(ctx, msg.To, msg.Subject, msg.HTML); err != nil {
		slog.Error("notification delivery failed", "worker", worker, "to", msg.To, "subject", msg.Subject, "error", err)
	}
}

// enqueue hands msg to the workers, sending inline when the queue is full
// or the workers have been stopped.
func (s *Service) enqueue(ctx context.Context, msg notification.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		slog.WarnContext(ctx, "notifier closed, sending inline", "to", msg.To, "subject", msg.Subject)
		return s.mailer.Send(ctx, msg.To, msg.Subject, msg.HTML)
	}

	select {
	case s.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.mailer.Send(ctx, msg.To, msg.Subject, msg.HTML)
	}
}

// Close stops the workers after the queued messages are sent.
func (s *Service) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Service) recipient(ctx context.Context, userID int64) (user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("get recipient: %w", err)
	}
	return u, nil
}

func (s *Service) Welcome(ctx context.Context, sub subscription.Subscription) error {
	u, err := s.recipient(ctx, sub.UserID)
	if err != nil {
		return err
	}
	msg, err := s.content.BuildWelcome(u, sub)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, msg)
}

func (s *Service) InvoiceIssued(ctx context.Context, inv invoice.Invoice, paymentLink string) error {
	u, err := s.recipient(ctx, inv.UserID)
	if err != nil {
		return err
	}
	msg, err := s.content.BuildInvoice(u, inv, paymentLink)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, msg)
}

func (s *Service) PaymentConfirmed(ctx context.Context, inv invoice.Invoice) error {
	u, err := s.recipient(ctx, inv.UserID)
	if err != nil {
		return err
	}
	msg, err := s.content.BuildPaymentConfirmation(u, inv)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, msg)
}

// HousekeepingReport is skipped when no admin address is configured.
func (s *Service) HousekeepingReport(ctx context.Context, summary report.HousekeepingSummary) error {
	if s.config.AdminEmail == "" {
		slog.DebugContext(ctx, "admin email not configured, skipping housekeeping report")
		return nil
	}
	msg, err := s.content.BuildHousekeepingReport(s.config.AdminEmail, summary)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, msg)
}
