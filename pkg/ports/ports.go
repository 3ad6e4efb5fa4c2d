// Package ports declares the interfaces the orchestrator and its adapters
// meet at: the event bus, snapshot storage and metrics collection.
package ports

import (
	"context"
	"time"
)

// EventType names a published lifecycle event.
type EventType string

const (
	EventTypeModelBeforeStep EventType = "model.before_step"
	EventTypeModelAfterStep  EventType = "model.after_step"
	EventTypeRoundBarrier    EventType = "round.barrier"
)

// Topics used by the bus observer.
const (
	TopicModelEvents = "model.events"
	TopicRoundEvents = "round.events"
)

// Event is the wire form of a lifecycle event.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Step      int64                  `json:"step"`
	ModelID   string                 `json:"model_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler processes a delivered event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes and delivers events by topic.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// SnapshotStorage persists blackboard snapshots per run and step.
type SnapshotStorage interface {
	Save(ctx context.Context, runID string, step int64, values map[string]interface{}) error
	Load(ctx context.Context, runID string, step int64) (map[string]interface{}, error)
	Latest(ctx context.Context, runID string) (int64, map[string]interface{}, error)
	Steps(ctx context.Context, runID string) ([]int64, error)
	Delete(ctx context.Context, runID string) error
}

// MetricsCollector records orchestration metrics.
type MetricsCollector interface {
	RecordRound(outcome string, duration time.Duration)
	RecordModelStep(modelID, status string, duration time.Duration)
	RecordModelInit(modelID, status string)
	SetActiveModels(count int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) RecordRound(string, time.Duration)             {}
func (NopMetrics) RecordModelStep(string, string, time.Duration) {}
func (NopMetrics) RecordModelInit(string, string)                {}
func (NopMetrics) SetActiveModels(int)                           {}
func (NopMetrics) RecordWorkerPoolStatus(int, int, int)          {}
