package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/simorch/pkg/ports"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// InMemoryEventBus delivers events to in-process handlers. Publish calls
// every handler of the topic synchronously, in subscription order.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	nextID      uint64
	closed      bool
	logger      *zap.Logger
}

type subscription struct {
	id      uint64
	handler ports.EventHandler
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		subscribers: make(map[string][]*subscription),
		logger:      logger,
	}
}

// Publish delivers an event to all subscribers of a topic. Handler errors
// are logged and do not stop delivery.
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*subscription, len(e.subscribers[topic]))
	copy(subs, e.subscribers[topic])
	e.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			e.logger.Warn("event handler failed",
				zap.String("topic", topic),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}

	return nil
}

// Subscribe adds handler to topic until ctx is done or the topic is
// unsubscribed.
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrBusClosed
	}

	e.nextID++
	sub := &subscription{id: e.nextID, handler: handler}
	e.subscribers[topic] = append(e.subscribers[topic], sub)

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() {
			e.remove(topic, sub.id)
		})
	}

	return nil
}

// Unsubscribe removes all subscriptions from a topic
func (e *InMemoryEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subscribers, topic)
	return nil
}

// Close drops every subscription; later calls fail with ErrBusClosed.
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.subscribers = make(map[string][]*subscription)
	return nil
}

func (e *InMemoryEventBus) remove(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, sub := range subs {
		if sub.id == id {
			e.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
