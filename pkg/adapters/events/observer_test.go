package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/adapters/events/memory"
	"github.com/aescanero/simorch/pkg/blackboard"
	"github.com/aescanero/simorch/pkg/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stepModel struct{ name string }

func (m stepModel) Name() string { return m.name }

func (m stepModel) Initialize(ctx context.Context, mc *orchestrator.ModelContext) error { return nil }

func (m stepModel) Step(ctx context.Context, clock orchestrator.Clock) (orchestrator.StepResult, error) {
	return orchestrator.ResultContinue, nil
}

func TestBusObserver_PublishesLifecycle(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := memory.NewInMemoryEventBus(logger)
	ctx := context.Background()

	var model, round []ports.Event
	require.NoError(t, bus.Subscribe(ctx, ports.TopicModelEvents, func(ctx context.Context, e ports.Event) error {
		model = append(model, e)
		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx, ports.TopicRoundEvents, func(ctx context.Context, e ports.Event) error {
		round = append(round, e)
		return nil
	}))

	orch := orchestrator.New(orchestrator.Options{RunID: "run-1", MaxParallelism: 1}, logger)
	t.Cleanup(func() { _ = orch.Dispose() })
	orch.Subscribe(NewBusObserver(bus, logger))

	_, err := orch.Register(stepModel{name: "wind"}, orchestrator.ModelOptions{})
	require.NoError(t, err)
	require.NoError(t, orch.Initialize(ctx, orchestrator.NewSimulationContext(blackboard.New())))

	_, err = orch.Step(ctx)
	require.NoError(t, err)

	require.Len(t, model, 2)
	require.Equal(t, ports.EventTypeModelBeforeStep, model[0].Type)
	require.Equal(t, ports.EventTypeModelAfterStep, model[1].Type)
	require.Equal(t, "wind", model[1].ModelID)
	require.Equal(t, "continue", model[1].Data["result"])

	require.Len(t, round, 1)
	require.Equal(t, ports.EventTypeRoundBarrier, round[0].Type)
	require.Equal(t, "run-1", round[0].RunID)
	require.Equal(t, int64(1), round[0].Step)
	require.Equal(t, []string{"wind"}, round[0].Data["models"])
	require.Equal(t, int64(1000), round[0].Data["simulated_time_ms"])
}

func TestBusObserver_PublishFailureIsSwallowed(t *testing.T) {
	bus := memory.NewInMemoryEventBus(nil)
	require.NoError(t, bus.Close())

	obs := NewBusObserver(bus, zaptest.NewLogger(t))
	require.NotPanics(t, func() {
		obs.OnEvent(context.Background(), orchestrator.Event{Type: orchestrator.EventBarrierReached})
	})
}

func TestToPortEvent_CarriesError(t *testing.T) {
	now := time.Now()
	msg := ToPortEvent(orchestrator.Event{
		Type:      orchestrator.EventBarrierReached,
		RunID:     "r",
		Step:      7,
		Timestamp: now,
		Result:    orchestrator.ResultError,
		Err:       errors.New("round aborted"),
	})

	require.NotEmpty(t, msg.ID)
	require.Equal(t, now, msg.Timestamp)
	require.Equal(t, "error", msg.Data["result"])
	require.Equal(t, "round aborted", msg.Data["error"])
	require.Empty(t, msg.ModelID)
}
