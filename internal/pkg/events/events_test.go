package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishStatusChanged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer bus.Close()

	messages, err := bus.Subscribe(ctx, TopicSubscriptionStatusChanged)
	require.NoError(t, err)

	want := StatusChanged{SubscriptionID: 7, UserID: 3, From: "active", To: "paused", At: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, bus.PublishStatusChanged(ctx, want))

	select {
	case msg := <-messages:
		got, err := DecodeStatusChanged(msg)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("status changed event not delivered")
	}
}
