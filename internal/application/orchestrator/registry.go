package orchestrator

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registration is the record the orchestrator keeps for one model. Its
// lifecycle fields are mutated only by the orchestrator; the getters are
// safe to call concurrently with a running round.
type Registration struct {
	id        string
	model     Model
	options   ModelOptions
	dependsOn []string
	order     int

	mu         sync.RWMutex
	state      ModelState
	steps      int64
	lastResult StepResult
	err        error
}

// RegistrationInfo is a point-in-time view of a registration.
type RegistrationInfo struct {
	ID                    string     `json:"id"`
	Priority              int        `json:"priority"`
	Optional              bool       `json:"optional"`
	ContinueAfterComplete bool       `json:"continue_after_complete"`
	DependsOn             []string   `json:"depends_on"`
	State                 ModelState `json:"state"`
	Steps                 int64      `json:"steps"`
	LastResult            StepResult `json:"last_result"`
	Error                 string     `json:"error,omitempty"`
}

func (r *Registration) ID() string            { return r.id }
func (r *Registration) Model() Model          { return r.model }
func (r *Registration) Options() ModelOptions { return r.options }
func (r *Registration) Priority() int         { return r.options.Priority }
func (r *Registration) Order() int            { return r.order }

// DependsOn returns the declared dependency identities in declaration order.
func (r *Registration) DependsOn() []string {
	return slices.Clone(r.dependsOn)
}

func (r *Registration) State() ModelState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// StepCount returns the number of successful steps.
func (r *Registration) StepCount() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps
}

func (r *Registration) LastResult() StepResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastResult
}

// Err returns the failure that moved the model to ModelError, if any.
func (r *Registration) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Info returns a snapshot of the registration.
func (r *Registration) Info() RegistrationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := RegistrationInfo{
		ID:                    r.id,
		Priority:              r.options.Priority,
		Optional:              r.options.Optional,
		ContinueAfterComplete: r.options.ContinueAfterComplete,
		DependsOn:             slices.Clone(r.dependsOn),
		State:                 r.state,
		Steps:                 r.steps,
		LastResult:            r.lastResult,
	}
	if r.err != nil {
		info.Error = r.err.Error()
	}
	return info
}

// active reports whether the model takes part in the next round.
func (r *Registration) active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch r.state {
	case ModelReady, ModelStepping:
		return true
	case ModelCompleted:
		return r.options.ContinueAfterComplete
	default:
		return false
	}
}

func (r *Registration) setState(s ModelState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// recordStep applies a successful step result.
func (r *Registration) recordStep(result StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.steps++
	r.lastResult = result
	if result == ResultCompleted {
		r.state = ModelCompleted
	} else {
		r.state = ModelReady
	}
}

// fail moves the model to ModelError permanently.
func (r *Registration) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = ModelError
	r.lastResult = ResultError
	r.err = err
}

// Registry holds registrations in registration order.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Registration
	ordered []*Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Registration),
	}
}

// Register records model under options.ID, or model.Name() when no ID is
// given. Dependencies are recorded verbatim, minus duplicates; they are
// resolved only when the graph is built, so models may be registered in any
// order.
func (r *Registry) Register(model Model, options ModelOptions, dependsOn ...string) (*Registration, error) {
	if model == nil {
		return nil, fmt.Errorf("register: nil model: %w", ErrInvalidArgument)
	}

	id := options.ID
	if id == "" {
		id = model.Name()
	}
	if id == "" {
		return nil, fmt.Errorf("register: model has no identity: %w", ErrInvalidArgument)
	}

	deps := make([]string, 0, len(dependsOn))
	for _, dep := range dependsOn {
		if dep == "" {
			return nil, fmt.Errorf("register %q: empty dependency: %w", id, ErrInvalidArgument)
		}
		if !slices.Contains(deps, dep) {
			deps = append(deps, dep)
		}
	}

	options.ID = id
	options.Parameters = maps.Clone(options.Parameters)
	if options.Parameters == nil {
		options.Parameters = make(map[string]any)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return nil, &RegistrationError{ModelID: id}
	}

	reg := &Registration{
		id:        id,
		model:     model,
		options:   options,
		dependsOn: deps,
		order:     len(r.ordered),
		state:     ModelRegistered,
	}
	r.byID[id] = reg
	r.ordered = append(r.ordered, reg)

	return reg, nil
}

// Get returns the registration for id.
func (r *Registry) Get(id string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	return reg, ok
}

// Registrations returns every registration in registration order.
func (r *Registry) Registrations() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ordered)
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
