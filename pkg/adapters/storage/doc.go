// Package storage persists shared-context snapshots taken at round
// barriers.
//
// Implementations:
//   - redis: Redis with JSON serialization, TTL and a sorted-set step index
//   - memory: In-memory for testing
//
// SnapshotRecorder is the orchestrator observer that takes the snapshots.
package storage
