package whitelist

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/events"
)

// Subscriber is the consuming side of the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// StatusListener expires the urls of subscriptions that stop being active.
type StatusListener struct {
	reconciler whitelist.Reconciler
	now        func() time.Time
}

func NewStatusListener(reconciler whitelist.Reconciler, clock func() time.Time) *StatusListener {
	if clock == nil {
		clock = time.Now
	}
	return &StatusListener{reconciler: reconciler, now: clock}
}

// Run consumes status change events until ctx is cancelled. It returns once
// the subscription is established; handling happens in the background.
func (l *StatusListener) Run(ctx context.Context, sub Subscriber) error {
	messages, err := sub.Subscribe(ctx, events.TopicSubscriptionStatusChanged)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			l.handle(msg)
		}
		slog.Info("status change listener stopped")
	}()
	return nil
}

func (l *StatusListener) handle(msg *message.Message) {
	defer msg.Ack()

	ctx := msg.Context()
	evt, err := events.DecodeStatusChanged(msg)
	if err != nil {
		slog.ErrorContext(ctx, "dropping malformed status change event", "message_id", msg.UUID, "error", err)
		return
	}

	n, err := l.reconciler.ExpireSweep(ctx, l.now())
	if err != nil {
		// The scheduled sweep retries later.
		slog.ErrorContext(ctx, "expire sweep after status change failed",
			"subscription_id", evt.SubscriptionID,
			"to", evt.To,
			"error", err,
		)
		return
	}
	slog.InfoContext(ctx, "expire sweep after status change",
		"subscription_id", evt.SubscriptionID,
		"to", evt.To,
		"expired", n,
	)
}
