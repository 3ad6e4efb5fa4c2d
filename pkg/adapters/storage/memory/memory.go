package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aescanero/simorch/pkg/ports"
)

// InMemorySnapshotStorage implements SnapshotStorage using in-memory maps.
// Values are stored as shallow copies.
type InMemorySnapshotStorage struct {
	runs map[string]map[int64]map[string]interface{}
	mu   sync.RWMutex
}

// NewInMemorySnapshotStorage creates a new in-memory snapshot storage
func NewInMemorySnapshotStorage() *InMemorySnapshotStorage {
	return &InMemorySnapshotStorage{
		runs: make(map[string]map[int64]map[string]interface{}),
	}
}

// Save stores the snapshot of runID at step, replacing an earlier one.
func (s *InMemorySnapshotStorage) Save(ctx context.Context, runID string, step int64, values map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.runs[runID]
	if !ok {
		steps = make(map[int64]map[string]interface{})
		s.runs[runID] = steps
	}
	steps[step] = maps.Clone(values)
	return nil
}

// Load returns the snapshot of runID at step.
func (s *InMemorySnapshotStorage) Load(ctx context.Context, runID string, step int64) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.runs[runID][step]
	if !ok {
		return nil, fmt.Errorf("run %s step %d: %w", runID, step, ports.ErrSnapshotNotFound)
	}
	return maps.Clone(values), nil
}

// Latest returns the highest stored step of runID and its snapshot.
func (s *InMemorySnapshotStorage) Latest(ctx context.Context, runID string) (int64, map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := s.runs[runID]
	if len(steps) == 0 {
		return 0, nil, fmt.Errorf("run %s: %w", runID, ports.ErrSnapshotNotFound)
	}
	latest := slices.Max(keys(steps))
	return latest, maps.Clone(steps[latest]), nil
}

// Steps returns the stored steps of runID in ascending order.
func (s *InMemorySnapshotStorage) Steps(ctx context.Context, runID string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ks := keys(s.runs[runID])
	slices.Sort(ks)
	return ks, nil
}

// Delete removes every snapshot of runID.
func (s *InMemorySnapshotStorage) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

// keys returns the keys of m in unspecified order, or nil when m is empty.
func keys[M ~map[K]V, K comparable, V any](m M) []K {
	var out []K
	for k := range m {
		out = append(out, k)
	}
	return out
}
