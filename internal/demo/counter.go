package demo

import (
	"context"
	"math"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/blackboard"
)

// Counter increments <id>.count every round and completes once it reaches
// its target. A count already in the shared context is resumed.
type Counter struct {
	key    string
	shared *blackboard.SharedContext
	target int64
	count  int64
}

// NewCounter creates an uninitialized counter.
func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Name() string { return KindCounter }

func (c *Counter) Initialize(_ context.Context, mc *orchestrator.ModelContext) error {
	target, err := mc.ParamInt("target", 10)
	if err != nil {
		return err
	}
	if target < 1 {
		return paramError("target", "must be at least 1")
	}

	c.target = target
	c.count = 0
	c.key = key(mc.ModelID, "count")
	c.shared = mc.Shared
	if n, ok := restoredFloat(c.shared, c.key); ok && n >= 0 && n == math.Trunc(n) {
		c.count = int64(n)
	}
	return c.shared.Set(c.key, c.count)
}

func (c *Counter) Step(_ context.Context, _ orchestrator.Clock) (orchestrator.StepResult, error) {
	c.count++
	if err := c.shared.Set(c.key, c.count); err != nil {
		return orchestrator.ResultError, err
	}
	if c.count >= c.target {
		return orchestrator.ResultCompleted, nil
	}
	return orchestrator.ResultContinue, nil
}
