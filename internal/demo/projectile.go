package demo

import (
	"context"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/blackboard"
	"go.uber.org/zap"
)

// Projectile integrates a point mass under gravity and linear air drag with
// the explicit Euler method. Drag acts on the velocity relative to the
// horizontal wind read from WindSpeedKey, so a projectile depending on a
// wind model sees that round's wind.
//
// State is published as <id>.x, <id>.y, <id>.vx and <id>.vy. When all four
// are already in the shared context the flight resumes from them. The model
// completes on the round it reaches the ground.
type Projectile struct {
	id     string
	shared *blackboard.SharedContext
	logger *zap.Logger

	x, y    float64
	vx, vy  float64
	drag    float64
	gravity float64
	landed  bool
}

// NewProjectile creates an uninitialized projectile.
func NewProjectile() *Projectile { return &Projectile{} }

func (p *Projectile) Name() string { return KindProjectile }

// Initialize reads x, y, vx, vy, mass, drag and gravity.
func (p *Projectile) Initialize(_ context.Context, mc *orchestrator.ModelContext) error {
	values := map[string]*float64{
		"x":  &p.x,
		"y":  &p.y,
		"vx": &p.vx,
		"vy": &p.vy,
	}
	defaults := map[string]float64{"x": 0, "y": 0, "vx": 30, "vy": 30}
	for name, dst := range values {
		v, err := mc.ParamFloat(name, defaults[name])
		if err != nil {
			return err
		}
		*dst = v
	}

	mass, err := mc.ParamFloat("mass", 1)
	if err != nil {
		return err
	}
	if mass <= 0 {
		return paramError("mass", "must be positive")
	}
	drag, err := mc.ParamFloat("drag", 0.05)
	if err != nil {
		return err
	}
	if drag < 0 {
		return paramError("drag", "must not be negative")
	}
	if p.gravity, err = mc.ParamFloat("gravity", 9.81); err != nil {
		return err
	}
	if p.y < 0 {
		return paramError("y", "must not be below ground")
	}

	p.id = mc.ModelID
	p.shared = mc.Shared
	p.logger = mc.Logger
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.drag = drag / mass
	p.resume()

	return p.publish()
}

func (p *Projectile) Step(_ context.Context, clock orchestrator.Clock) (orchestrator.StepResult, error) {
	if p.landed {
		return orchestrator.ResultCompleted, nil
	}

	dt := clock.TimeStep.Seconds()
	wind := blackboard.GetOrDefault(p.shared, WindSpeedKey, 0.0)

	ax := -p.drag * (p.vx - wind)
	ay := -p.gravity - p.drag*p.vy

	p.x += p.vx * dt
	p.y += p.vy * dt
	p.vx += ax * dt
	p.vy += ay * dt

	if p.y <= 0 {
		p.y = 0
		p.landed = true
	}

	if err := p.publish(); err != nil {
		return orchestrator.ResultError, err
	}

	if p.landed {
		p.logger.Info("projectile landed",
			zap.Int64("step", clock.Step),
			zap.Float64("range_m", p.x),
			zap.Duration("flight_time", clock.SimulatedTime))
		return orchestrator.ResultCompleted, nil
	}
	return orchestrator.ResultContinue, nil
}

// resume takes over a state seeded into the shared context. A seeded state
// on the ground and not climbing has already landed.
func (p *Projectile) resume() {
	var state [4]float64
	for i, name := range []string{"x", "y", "vx", "vy"} {
		v, ok := restoredFloat(p.shared, key(p.id, name))
		if !ok {
			return
		}
		state[i] = v
	}
	p.x, p.y, p.vx, p.vy = state[0], state[1], state[2], state[3]
	p.landed = p.y <= 0 && p.vy <= 0
	if p.y < 0 {
		p.y = 0
	}
}

func (p *Projectile) publish() error {
	for name, v := range map[string]float64{"x": p.x, "y": p.y, "vx": p.vx, "vy": p.vy} {
		if err := p.shared.Set(key(p.id, name), v); err != nil {
			return err
		}
	}
	return nil
}
