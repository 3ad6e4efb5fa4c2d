package storage

import (
	"context"
	"fmt"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/blackboard"
	"github.com/aescanero/simorch/pkg/ports"
	"go.uber.org/zap"
)

// SnapshotRecorder saves the shared context at round barriers. It records
// every Nth round plus any round that ends the run.
type SnapshotRecorder struct {
	store  ports.SnapshotStorage
	shared *blackboard.SharedContext
	every  int64
	logger *zap.Logger
}

// NewSnapshotRecorder creates a recorder saving shared to store every
// `every` rounds; values below one record every round.
func NewSnapshotRecorder(store ports.SnapshotStorage, shared *blackboard.SharedContext, every int64, logger *zap.Logger) *SnapshotRecorder {
	if every < 1 {
		every = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRecorder{
		store:  store,
		shared: shared,
		every:  every,
		logger: logger,
	}
}

// OnEvent implements orchestrator.Observer.
func (r *SnapshotRecorder) OnEvent(ctx context.Context, event orchestrator.Event) {
	if event.Type != orchestrator.EventBarrierReached {
		return
	}

	final := event.Result != orchestrator.ResultContinue
	if event.Step%r.every != 0 && !final {
		return
	}

	// An aborted round still gets its snapshot.
	ctx = context.WithoutCancel(ctx)
	if err := r.store.Save(ctx, event.RunID, event.Step, r.shared.Snapshot()); err != nil {
		r.logger.Warn("failed to save snapshot",
			zap.String("run_id", event.RunID),
			zap.Int64("step", event.Step),
			zap.Error(err))
	}
}

// RestoreLatest loads the newest snapshot of runID into shared and returns
// its step.
func RestoreLatest(ctx context.Context, store ports.SnapshotStorage, runID string, shared *blackboard.SharedContext) (int64, error) {
	step, values, err := store.Latest(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("restore run %s: %w", runID, err)
	}
	if err := shared.Restore(values); err != nil {
		return 0, fmt.Errorf("restore run %s step %d: %w", runID, step, err)
	}
	return step, nil
}
