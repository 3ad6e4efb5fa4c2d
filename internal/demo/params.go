package demo

import (
	"fmt"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/blackboard"
)

func paramError(key, reason string) error {
	return fmt.Errorf("parameter %q %s: %w", key, reason, orchestrator.ErrInvalidArgument)
}

// key returns the shared context key for one of a model's state variables.
func key(modelID, name string) string {
	return modelID + "." + name
}

// restoredFloat reads a number already present in the shared context, such
// as one seeded from a snapshot. Snapshots decoded from JSON hold every
// number as float64, so integer types are accepted too.
func restoredFloat(shared *blackboard.SharedContext, key string) (float64, bool) {
	if v, ok := blackboard.TryGet[float64](shared, key); ok {
		return v, true
	}
	if v, ok := blackboard.TryGet[int64](shared, key); ok {
		return float64(v), true
	}
	if v, ok := blackboard.TryGet[int](shared, key); ok {
		return float64(v), true
	}
	return 0, false
}
