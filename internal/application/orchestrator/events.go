package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType categorizes lifecycle events.
type EventType string

const (
	EventBeforeModelStep EventType = "model.before_step"
	EventAfterModelStep  EventType = "model.after_step"
	EventBarrierReached  EventType = "round.barrier"
)

// Event is a lifecycle notification.
//
// BeforeModelStep and AfterModelStep fire exactly once per active model per
// round; within a level they may interleave in any order. BarrierReached
// fires exactly once per round, after every AfterModelStep of that round.
type Event struct {
	Type      EventType
	RunID     string
	Step      int64
	Timestamp time.Time

	// Model is set for model events.
	Model *Registration
	// Result is the model's result on AfterModelStep and the round outcome
	// on BarrierReached.
	Result StepResult
	// Err is the model's failure on AfterModelStep, or the fatal error of the
	// round on BarrierReached.
	Err error
	// Duration of the model step or of the round.
	Duration time.Duration

	// Models lists the round's registrations in level order (barrier only).
	Models        []*Registration
	SimulatedTime time.Duration
}

// Observer receives lifecycle events. Model events are delivered from worker
// goroutines, so implementations must be safe for concurrent use. OnEvent
// runs on the orchestrator's execution path and should return quickly.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) { f(ctx, event) }

// dispatcher fans events out to subscribed observers synchronously.
type dispatcher struct {
	mu        sync.RWMutex
	next      uint64
	observers map[uint64]Observer
	order     []uint64
	logger    *zap.Logger
}

func newDispatcher(logger *zap.Logger) *dispatcher {
	return &dispatcher{
		observers: make(map[uint64]Observer),
		logger:    logger,
	}
}

// subscribe adds obs and returns a function removing it again.
func (d *dispatcher) subscribe(obs Observer) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.next
	d.next++
	d.observers[id] = obs
	d.order = append(d.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.observers, id)
			for i, v := range d.order {
				if v == id {
					d.order = append(d.order[:i], d.order[i+1:]...)
					break
				}
			}
		})
	}
}

// dispatch invokes every observer in subscription order. A panicking
// observer is logged and skipped.
func (d *dispatcher) dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	observers := make([]Observer, 0, len(d.order))
	for _, id := range d.order {
		observers = append(observers, d.observers[id])
	}
	d.mu.RUnlock()

	for _, obs := range observers {
		d.notify(ctx, obs, event)
	}
}

func (d *dispatcher) notify(ctx context.Context, obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked",
				zap.String("event_type", string(event.Type)),
				zap.Int64("step", event.Step),
				zap.Any("panic", r))
		}
	}()
	obs.OnEvent(ctx, event)
}
