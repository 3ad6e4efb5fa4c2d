package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/simorch/pkg/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInMemoryEventBus_PublishDeliversInOrder(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	ctx := context.Background()

	var got []string
	require.NoError(t, bus.Subscribe(ctx, "round.events", func(ctx context.Context, e ports.Event) error {
		got = append(got, "first:"+e.ID)
		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx, "round.events", func(ctx context.Context, e ports.Event) error {
		got = append(got, "second:"+e.ID)
		return errors.New("ignored")
	}))
	require.NoError(t, bus.Subscribe(ctx, "model.events", func(ctx context.Context, e ports.Event) error {
		got = append(got, "other:"+e.ID)
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "round.events", ports.Event{ID: "1"}))
	require.NoError(t, bus.Publish(ctx, "round.events", ports.Event{ID: "2"}))

	require.Equal(t, []string{"first:1", "second:1", "first:2", "second:2"}, got)
}

func TestInMemoryEventBus_ContextEndsSubscription(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	require.NoError(t, bus.Subscribe(ctx, "t", func(ctx context.Context, e ports.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), "t", ports.Event{}))
	cancel()
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers["t"]) == 0
	}, time.Second, time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "t", ports.Event{}))
	require.Equal(t, 1, calls)
}

func TestInMemoryEventBus_UnsubscribeAndClose(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	ctx := context.Background()

	calls := 0
	handler := func(ctx context.Context, e ports.Event) error {
		calls++
		return nil
	}
	require.NoError(t, bus.Subscribe(ctx, "t", handler))
	require.NoError(t, bus.Unsubscribe(ctx, "t"))
	require.NoError(t, bus.Publish(ctx, "t", ports.Event{}))
	require.Zero(t, calls)

	require.NoError(t, bus.Close())
	require.ErrorIs(t, bus.Publish(ctx, "t", ports.Event{}), ErrBusClosed)
	require.ErrorIs(t, bus.Subscribe(ctx, "t", handler), ErrBusClosed)
}
