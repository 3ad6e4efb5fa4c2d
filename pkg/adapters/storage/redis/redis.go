package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aescanero/simorch/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "simorch:snapshot"

// SnapshotStorage implements ports.SnapshotStorage using Redis. Each
// snapshot is a JSON string key; a sorted set per run indexes the steps.
// Values come back as decoded JSON, so numbers load as float64.
type SnapshotStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewSnapshotStorage creates a new Redis snapshot storage. A zero ttl keeps
// snapshots until deleted.
func NewSnapshotStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SnapshotStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save stores the snapshot and indexes its step in one transaction.
func (s *SnapshotStorage) Save(ctx context.Context, runID string, step int64, values map[string]interface{}) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := getSnapshotKey(runID, step)
	index := getIndexKey(runID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, s.ttl)
		pipe.ZAdd(ctx, index, redis.Z{Score: float64(step), Member: strconv.FormatInt(step, 10)})
		if s.ttl > 0 {
			pipe.Expire(ctx, index, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("run_id", runID),
		zap.Int64("step", step),
		zap.Int("keys", len(values)))

	return nil
}

// Load retrieves the snapshot of runID at step.
func (s *SnapshotStorage) Load(ctx context.Context, runID string, step int64) (map[string]interface{}, error) {
	data, err := s.client.Get(ctx, getSnapshotKey(runID, step)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("run %s step %d: %w", runID, step, ports.ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return values, nil
}

// Latest returns the highest indexed step of runID and its snapshot.
func (s *SnapshotStorage) Latest(ctx context.Context, runID string) (int64, map[string]interface{}, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, getIndexKey(runID), 0, 0).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read step index: %w", err)
	}
	if len(members) == 0 {
		return 0, nil, fmt.Errorf("run %s: %w", runID, ports.ErrSnapshotNotFound)
	}

	step := int64(members[0].Score)
	values, err := s.Load(ctx, runID, step)
	if err != nil {
		return 0, nil, err
	}
	return step, values, nil
}

// Steps returns the indexed steps of runID in ascending order.
func (s *SnapshotStorage) Steps(ctx context.Context, runID string) ([]int64, error) {
	members, err := s.client.ZRange(ctx, getIndexKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read step index: %w", err)
	}

	steps := make([]int64, 0, len(members))
	for _, m := range members {
		step, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt step index entry %q: %w", m, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Delete removes every snapshot of runID and its index.
func (s *SnapshotStorage) Delete(ctx context.Context, runID string) error {
	steps, err := s.Steps(ctx, runID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(steps)+1)
	for _, step := range steps {
		keys = append(keys, getSnapshotKey(runID, step))
	}
	keys = append(keys, getIndexKey(runID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}

	s.logger.Debug("snapshots deleted",
		zap.String("run_id", runID),
		zap.Int("steps", len(steps)))

	return nil
}

func getSnapshotKey(runID string, step int64) string {
	return fmt.Sprintf("%s:%s:%d", keyPrefix, runID, step)
}

func getIndexKey(runID string) string {
	return fmt.Sprintf("%s:%s:steps", keyPrefix, runID)
}
