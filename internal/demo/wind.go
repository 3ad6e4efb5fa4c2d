package demo

import (
	"context"
	"math"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/blackboard"
)

// WindSpeedKey is where the wind model publishes its speed in m/s.
const WindSpeedKey = "wind.speed"

// Wind writes a wind speed every round. With a gust amplitude the speed
// oscillates sinusoidally around the base speed.
//
// Wind reports completion from its first round; scenarios register it with
// continue_after_complete so it keeps blowing without holding the run open.
type Wind struct {
	shared *blackboard.SharedContext
	key    string
	speed  float64
	gust   float64
	period float64
}

// NewWind creates an uninitialized wind model.
func NewWind() *Wind { return &Wind{} }

func (w *Wind) Name() string { return KindWind }

// Initialize reads speed, gust, period (rounds) and key.
func (w *Wind) Initialize(_ context.Context, mc *orchestrator.ModelContext) error {
	var err error
	if w.speed, err = mc.ParamFloat("speed", 5); err != nil {
		return err
	}
	if w.gust, err = mc.ParamFloat("gust", 0); err != nil {
		return err
	}
	if w.period, err = mc.ParamFloat("period", 10); err != nil {
		return err
	}
	if w.period <= 0 {
		return paramError("period", "must be positive")
	}
	if w.key, err = mc.ParamString("key", WindSpeedKey); err != nil {
		return err
	}
	w.shared = mc.Shared

	// A seeded speed stands until the first round.
	speed := w.speed
	if v, ok := restoredFloat(w.shared, w.key); ok {
		speed = v
	}
	return w.shared.Set(w.key, speed)
}

func (w *Wind) Step(_ context.Context, clock orchestrator.Clock) (orchestrator.StepResult, error) {
	speed := w.speed + w.gust*math.Sin(2*math.Pi*float64(clock.Step)/w.period)
	if err := w.shared.Set(w.key, speed); err != nil {
		return orchestrator.ResultError, err
	}
	return orchestrator.ResultCompleted, nil
}
