package storage

import (
	"context"
	"testing"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/adapters/storage/memory"
	"github.com/aescanero/simorch/pkg/blackboard"
	"github.com/aescanero/simorch/pkg/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type tickModel struct {
	mc    *orchestrator.ModelContext
	limit int64
}

func (m *tickModel) Name() string { return "tick" }

func (m *tickModel) Initialize(ctx context.Context, mc *orchestrator.ModelContext) error {
	m.mc = mc
	return nil
}

func (m *tickModel) Step(ctx context.Context, clock orchestrator.Clock) (orchestrator.StepResult, error) {
	if err := m.mc.Shared.Set("tick", clock.Step); err != nil {
		return orchestrator.ResultError, err
	}
	if clock.Step >= m.limit {
		return orchestrator.ResultCompleted, nil
	}
	return orchestrator.ResultContinue, nil
}

func TestSnapshotRecorder_RecordsEveryNthAndFinalRound(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()
	store := memory.NewInMemorySnapshotStorage()
	shared := blackboard.New()

	orch := orchestrator.New(orchestrator.Options{RunID: "run"}, logger)
	t.Cleanup(func() { _ = orch.Dispose() })
	orch.Subscribe(NewSnapshotRecorder(store, shared, 2, logger))

	_, err := orch.Register(&tickModel{limit: 5}, orchestrator.ModelOptions{})
	require.NoError(t, err)
	require.NoError(t, orch.Initialize(ctx, orchestrator.NewSimulationContext(shared)))

	for !orch.IsComplete() {
		_, err := orch.Step(ctx)
		require.NoError(t, err)
	}

	steps, err := store.Steps(ctx, "run")
	require.NoError(t, err)
	require.Equal(t, []int64{2, 4, 5}, steps)

	snap, err := store.Load(ctx, "run", 4)
	require.NoError(t, err)
	require.Equal(t, int64(4), snap["tick"])
}

func TestSnapshotRecorder_IgnoresModelEvents(t *testing.T) {
	store := memory.NewInMemorySnapshotStorage()
	rec := NewSnapshotRecorder(store, blackboard.New(), 0, nil)

	rec.OnEvent(context.Background(), orchestrator.Event{Type: orchestrator.EventAfterModelStep, RunID: "r", Step: 1})

	steps, err := store.Steps(context.Background(), "r")
	require.NoError(t, err)
	require.Empty(t, steps)
}

func TestRestoreLatest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemorySnapshotStorage()
	require.NoError(t, store.Save(ctx, "r", 1, map[string]interface{}{"a": 1}))
	require.NoError(t, store.Save(ctx, "r", 7, map[string]interface{}{"a": 7, "b": "x"}))

	shared := blackboard.New()
	step, err := RestoreLatest(ctx, store, "r", shared)
	require.NoError(t, err)
	require.Equal(t, int64(7), step)
	require.Equal(t, 7, blackboard.GetOrDefault(shared, "a", 0))
	require.Equal(t, []string{"a", "b"}, shared.Keys())

	_, err = RestoreLatest(ctx, store, "missing", shared)
	require.ErrorIs(t, err, ports.ErrSnapshotNotFound)
}
