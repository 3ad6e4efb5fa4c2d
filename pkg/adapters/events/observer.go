package events

import (
	"context"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BusObserver republishes orchestrator events on an event bus: model events
// on ports.TopicModelEvents, barriers on ports.TopicRoundEvents. Publish
// failures are logged and never reach the orchestrator.
type BusObserver struct {
	bus    ports.EventBus
	logger *zap.Logger
}

// NewBusObserver creates an observer publishing to bus.
func NewBusObserver(bus ports.EventBus, logger *zap.Logger) *BusObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusObserver{bus: bus, logger: logger}
}

// OnEvent implements orchestrator.Observer.
func (o *BusObserver) OnEvent(ctx context.Context, event orchestrator.Event) {
	msg := ToPortEvent(event)

	topic := ports.TopicModelEvents
	if event.Type == orchestrator.EventBarrierReached {
		topic = ports.TopicRoundEvents
	}

	if err := o.bus.Publish(ctx, topic, msg); err != nil {
		o.logger.Warn("failed to publish lifecycle event",
			zap.String("topic", topic),
			zap.String("type", string(msg.Type)),
			zap.Int64("step", msg.Step),
			zap.Error(err))
	}
}

// ToPortEvent converts an orchestrator event to its wire form.
func ToPortEvent(event orchestrator.Event) ports.Event {
	msg := ports.Event{
		ID:        uuid.New().String(),
		Type:      ports.EventType(event.Type),
		Timestamp: event.Timestamp,
		RunID:     event.RunID,
		Step:      event.Step,
		Data:      make(map[string]interface{}),
	}

	if event.Model != nil {
		msg.ModelID = event.Model.ID()
	}

	switch event.Type {
	case orchestrator.EventAfterModelStep:
		msg.Data["result"] = event.Result.String()
		msg.Data["duration_ms"] = event.Duration.Milliseconds()
	case orchestrator.EventBarrierReached:
		msg.Data["result"] = event.Result.String()
		msg.Data["duration_ms"] = event.Duration.Milliseconds()
		msg.Data["simulated_time_ms"] = event.SimulatedTime.Milliseconds()
		models := make([]string, len(event.Models))
		for i, reg := range event.Models {
			models[i] = reg.ID()
		}
		msg.Data["models"] = models
	}

	if event.Err != nil {
		msg.Data["error"] = event.Err.Error()
	}

	return msg
}
