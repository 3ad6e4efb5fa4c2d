package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/simorch/pkg/blackboard"
	"go.uber.org/zap"
)

// DefaultTimeStep is the simulated duration of one round when the
// simulation context leaves it unset.
const DefaultTimeStep = time.Second

// Model is the capability interface every simulation model implements. The
// orchestrator holds only this interface, never a concrete model type.
type Model interface {
	// Name is the stable default identity of the model.
	Name() string
	// Initialize prepares the model before the first round.
	Initialize(ctx context.Context, mc *ModelContext) error
	// Step advances the model by one round and reports whether it has
	// completed.
	Step(ctx context.Context, clock Clock) (StepResult, error)
}

// ModelOptions configures a registration.
type ModelOptions struct {
	// ID overrides Model.Name as the identity.
	ID string `json:"id,omitempty" yaml:"id"`
	// Priority breaks ties between models without a dependency relationship;
	// lower runs first wherever a total order is needed.
	Priority int `json:"priority" yaml:"priority"`
	// ContinueAfterComplete keeps stepping the model after it reports
	// completion and leaves it out of the run's completion check.
	ContinueAfterComplete bool `json:"continue_after_complete" yaml:"continue_after_complete"`
	// Optional contains the model's failures instead of failing the run.
	Optional bool `json:"optional" yaml:"optional"`
	// Parameters is the model's opaque parameter bag.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"params"`
}

// SimulationContext is handed to Initialize and shared by every model in
// the run.
type SimulationContext struct {
	Shared   *blackboard.SharedContext
	TimeStep time.Duration
}

// NewSimulationContext creates a simulation context over shared with the
// default time step.
func NewSimulationContext(shared *blackboard.SharedContext) *SimulationContext {
	return &SimulationContext{Shared: shared, TimeStep: DefaultTimeStep}
}

// Clock is the logical time of a round.
type Clock struct {
	Step          int64         `json:"step"`
	TimeStep      time.Duration `json:"time_step"`
	SimulatedTime time.Duration `json:"simulated_time"`
}

func newClock(step int64, timeStep time.Duration) Clock {
	return Clock{
		Step:          step,
		TimeStep:      timeStep,
		SimulatedTime: time.Duration(step) * timeStep,
	}
}

// ModelContext is the model-scoped view passed to Model.Initialize. Models
// may keep it for use in later steps.
type ModelContext struct {
	ModelID    string
	Shared     *blackboard.SharedContext
	Parameters map[string]any
	TimeStep   time.Duration
	Logger     *zap.Logger
}

// Param returns a raw parameter.
func (mc *ModelContext) Param(key string) (any, bool) {
	v, ok := mc.Parameters[key]
	return v, ok
}

// ParamFloat returns a numeric parameter as float64, accepting any integer or
// float representation a decoder may have produced.
func (mc *ModelContext) ParamFloat(key string, def float64) (float64, error) {
	v, ok := mc.Parameters[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return def, fmt.Errorf("parameter %q: expected number, got %T: %w", key, v, ErrInvalidArgument)
	}
}

// ParamInt returns an integer parameter. Floats with a fractional part are
// rejected.
func (mc *ModelContext) ParamInt(key string, def int64) (int64, error) {
	v, ok := mc.Parameters[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return def, fmt.Errorf("parameter %q: %v is not an integer: %w", key, n, ErrInvalidArgument)
		}
		return int64(n), nil
	default:
		return def, fmt.Errorf("parameter %q: expected integer, got %T: %w", key, v, ErrInvalidArgument)
	}
}

// ParamString returns a string parameter.
func (mc *ModelContext) ParamString(key, def string) (string, error) {
	v, ok := mc.Parameters[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return def, fmt.Errorf("parameter %q: expected string, got %T: %w", key, v, ErrInvalidArgument)
	}
	return s, nil
}
