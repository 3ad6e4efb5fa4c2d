package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aescanero/simorch/pkg/blackboard"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedModel returns the results of script in order, repeating the last
// entry once the script is exhausted.
type scriptedModel struct {
	name    string
	script  []StepResult
	failAt  int64
	panicAt int64
	initErr error
	onStep  func(mc *ModelContext, clock Clock) error

	mu     sync.Mutex
	mc     *ModelContext
	calls  int64
	clocks []Clock
}

func newModel(name string, script ...StepResult) *scriptedModel {
	if len(script) == 0 {
		script = []StepResult{ResultContinue}
	}
	return &scriptedModel{name: name, script: script}
}

func (m *scriptedModel) Name() string { return m.name }

func (m *scriptedModel) Initialize(ctx context.Context, mc *ModelContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mc = mc
	return m.initErr
}

func (m *scriptedModel) Step(ctx context.Context, clock Clock) (StepResult, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.clocks = append(m.clocks, clock)
	mc := m.mc
	m.mu.Unlock()

	if m.panicAt == call {
		panic("model exploded")
	}
	if m.failAt == call {
		return ResultError, fmt.Errorf("%s failed at call %d", m.name, call)
	}
	if m.onStep != nil {
		if err := m.onStep(mc, clock); err != nil {
			return ResultError, err
		}
	}

	i := int(call - 1)
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	return m.script[i], nil
}

func (m *scriptedModel) Calls() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// eventLog records events as compact strings.
type eventLog struct {
	mu      sync.Mutex
	entries []string
	events  []Event
}

func (l *eventLog) OnEvent(ctx context.Context, event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entry string
	switch event.Type {
	case EventBeforeModelStep:
		entry = "before:" + event.Model.ID()
	case EventAfterModelStep:
		entry = "after:" + event.Model.ID()
	case EventBarrierReached:
		entry = fmt.Sprintf("barrier:%d", event.Step)
	}
	l.entries = append(l.entries, entry)
	l.events = append(l.events, event)
}

func (l *eventLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *eventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.events = nil
}

func indexOf(entries []string, want string) int {
	for i, e := range entries {
		if e == want {
			return i
		}
	}
	return -1
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	o := New(opts, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = o.Dispose() })
	return o
}

func initialize(t *testing.T, o *Orchestrator) *blackboard.SharedContext {
	t.Helper()
	shared := blackboard.New()
	require.NoError(t, o.Initialize(context.Background(), NewSimulationContext(shared)))
	return shared
}
