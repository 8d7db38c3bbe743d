package whitelist

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepRecorder struct {
	whitelist.Reconciler
	swept chan time.Time
}

func (s *sweepRecorder) ExpireSweep(_ context.Context, at time.Time) (int64, error) {
	s.swept <- at
	return 1, nil
}

func TestStatusListener_SweepsOnStatusChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer bus.Close()

	rec := &sweepRecorder{swept: make(chan time.Time, 1)}
	listener := NewStatusListener(rec, func() time.Time { return now })
	require.NoError(t, listener.Run(ctx, bus))

	require.NoError(t, bus.PublishStatusChanged(ctx, events.StatusChanged{SubscriptionID: 1, From: "active", To: "paused"}))

	select {
	case at := <-rec.swept:
		assert.Equal(t, now, at)
	case <-time.After(2 * time.Second):
		t.Fatal("expire sweep not triggered")
	}
}
