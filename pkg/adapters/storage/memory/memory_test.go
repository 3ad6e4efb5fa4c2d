package memory

import (
	"context"
	"testing"

	"github.com/aescanero/simorch/pkg/ports"
	"github.com/stretchr/testify/require"
)

func TestInMemorySnapshotStorage(t *testing.T) {
	s := NewInMemorySnapshotStorage()
	ctx := context.Background()

	_, _, err := s.Latest(ctx, "run")
	require.ErrorIs(t, err, ports.ErrSnapshotNotFound)

	values := map[string]interface{}{"wind.speed": 3.5}
	require.NoError(t, s.Save(ctx, "run", 2, values))
	require.NoError(t, s.Save(ctx, "run", 10, map[string]interface{}{"wind.speed": 4.0}))
	require.NoError(t, s.Save(ctx, "run", 5, map[string]interface{}{"wind.speed": 3.9}))
	require.NoError(t, s.Save(ctx, "other", 1, map[string]interface{}{}))

	values["wind.speed"] = 99.0
	got, err := s.Load(ctx, "run", 2)
	require.NoError(t, err)
	require.Equal(t, 3.5, got["wind.speed"])

	step, latest, err := s.Latest(ctx, "run")
	require.NoError(t, err)
	require.Equal(t, int64(10), step)
	require.Equal(t, 4.0, latest["wind.speed"])

	steps, err := s.Steps(ctx, "run")
	require.NoError(t, err)
	require.Equal(t, []int64{2, 5, 10}, steps)

	_, err = s.Load(ctx, "run", 3)
	require.ErrorIs(t, err, ports.ErrSnapshotNotFound)

	require.NoError(t, s.Delete(ctx, "run"))
	steps, err = s.Steps(ctx, "run")
	require.NoError(t, err)
	require.Empty(t, steps)

	_, err = s.Load(ctx, "other", 1)
	require.NoError(t, err)
}
