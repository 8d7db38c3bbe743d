// Package events carries in-process domain events over a watermill
// go-channel pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const TopicSubscriptionStatusChanged = "subscription.status_changed"

// StatusChanged is published when a subscription leaves or enters a status.
type StatusChanged struct {
	SubscriptionID int64     `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	At             time.Time `json:"at"`
}

// Publisher emits domain events.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt StatusChanged) error
}

// Bus is the process-wide event bus.
type Bus struct {
	pubSub *gochannel.GoChannel
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewSlogLogger(logger),
		),
	}
}

func (b *Bus) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal status changed: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	return b.pubSub.Publish(TopicSubscriptionStatusChanged, msg)
}

// Subscribe returns the message stream for topic. The channel closes when
// ctx is cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// DecodeStatusChanged parses a StatusChanged message payload.
func DecodeStatusChanged(msg *message.Message) (StatusChanged, error) {
	var evt StatusChanged
	err := json.Unmarshal(msg.Payload, &evt)
	return evt, err
}
