// Package events publishes orchestrator lifecycle events on an event bus.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: in-process delivery for tests and single-process runs
//
// BusObserver subscribes to an orchestrator and republishes its events on
// any ports.EventBus.
package events
