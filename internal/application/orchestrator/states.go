package orchestrator

// RunState is the orchestrator's run-level state.
type RunState int

const (
	RunCreated RunState = iota
	RunReady
	RunRunning
	RunPaused
	RunCompleted
	RunError
)

func (s RunState) String() string {
	switch s {
	case RunCreated:
		return "created"
	case RunReady:
		return "ready"
	case RunRunning:
		return "running"
	case RunPaused:
		return "paused"
	case RunCompleted:
		return "completed"
	case RunError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no further rounds can run.
func (s RunState) IsTerminal() bool {
	return s == RunCompleted || s == RunError
}

// ModelState is the lifecycle state of one registered model.
type ModelState int

const (
	ModelRegistered ModelState = iota
	ModelInitializing
	ModelReady
	ModelStepping
	ModelCompleted
	ModelError
)

func (s ModelState) String() string {
	switch s {
	case ModelRegistered:
		return "registered"
	case ModelInitializing:
		return "initializing"
	case ModelReady:
		return "ready"
	case ModelStepping:
		return "stepping"
	case ModelCompleted:
		return "completed"
	case ModelError:
		return "error"
	default:
		return "unknown"
	}
}

func (s ModelState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StepResult is the completion signal of a model step and the outcome of a
// round.
type StepResult int

const (
	ResultContinue StepResult = iota
	ResultCompleted
	ResultError
)

func (r StepResult) String() string {
	switch r {
	case ResultContinue:
		return "continue"
	case ResultCompleted:
		return "completed"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

func (r StepResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
