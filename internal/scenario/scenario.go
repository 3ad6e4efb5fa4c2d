// Package scenario loads simulation scenarios from YAML and registers their
// models with an orchestrator.
//
// A scenario file looks like:
//
//	name: crosswind
//	time_step: 100ms
//	models:
//	  - id: wind
//	    kind: wind
//	    continue_after_complete: true
//	    params:
//	      speed: 8
//	  - id: shell
//	    kind: projectile
//	    depends_on: [wind]
//	    params:
//	      vx: 40
//	      vy: 40
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/blackboard"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is wrapped by every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a declarative description of a run.
type Scenario struct {
	Name     string        `yaml:"name"`
	TimeStep time.Duration `yaml:"time_step"`
	Models   []Model       `yaml:"models"`
}

// Model declares one registration.
type Model struct {
	ID                    string         `yaml:"id"`
	Kind                  string         `yaml:"kind"`
	Priority              int            `yaml:"priority"`
	Optional              bool           `yaml:"optional"`
	ContinueAfterComplete bool           `yaml:"continue_after_complete"`
	DependsOn             []string       `yaml:"depends_on"`
	Params                map[string]any `yaml:"params"`
}

// Identity returns the registration id, defaulting to the kind.
func (m Model) Identity() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Kind
}

// Options converts the declaration to registration options.
func (m Model) Options() orchestrator.ModelOptions {
	return orchestrator.ModelOptions{
		ID:                    m.ID,
		Priority:              m.Priority,
		Optional:              m.Optional,
		ContinueAfterComplete: m.ContinueAfterComplete,
		Parameters:            m.Params,
	}
}

// ModelFactory builds a model for a kind.
type ModelFactory interface {
	New(kind string) (orchestrator.Model, error)
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario document. Unknown fields are
// rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := decodeStrict(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario for problems that can be found without
// building the dependency graph: missing kinds, duplicate ids and references
// to undeclared models. Cycles are reported by the orchestrator.
func (s *Scenario) Validate() error {
	if s.TimeStep < 0 {
		return fmt.Errorf("%w: time_step must not be negative", ErrInvalidScenario)
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("%w: no models declared", ErrInvalidScenario)
	}

	ids := make(map[string]struct{}, len(s.Models))
	for i, m := range s.Models {
		if m.Kind == "" {
			return fmt.Errorf("%w: models[%d]: kind is required", ErrInvalidScenario, i)
		}
		id := m.Identity()
		if _, dup := ids[id]; dup {
			return fmt.Errorf("%w: models[%d]: duplicate id %q", ErrInvalidScenario, i, id)
		}
		ids[id] = struct{}{}
	}

	for _, m := range s.Models {
		for _, dep := range m.DependsOn {
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("%w: model %q depends on undeclared model %q", ErrInvalidScenario, m.Identity(), dep)
			}
		}
	}

	return nil
}

// Apply builds every declared model with factory and registers it with
// orch, in declaration order.
func (s *Scenario) Apply(orch *orchestrator.Orchestrator, factory ModelFactory) error {
	for _, m := range s.Models {
		model, err := factory.New(m.Kind)
		if err != nil {
			return fmt.Errorf("model %q: %w", m.Identity(), err)
		}
		if _, err := orch.Register(model, m.Options(), m.DependsOn...); err != nil {
			return fmt.Errorf("model %q: %w", m.Identity(), err)
		}
	}
	return nil
}

// SimulationContext returns the simulation context for a run of this
// scenario over shared. A zero time step falls back to the orchestrator
// default.
func (s *Scenario) SimulationContext(shared *blackboard.SharedContext) *orchestrator.SimulationContext {
	sim := orchestrator.NewSimulationContext(shared)
	if s.TimeStep > 0 {
		sim.TimeStep = s.TimeStep
	}
	return sim
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
