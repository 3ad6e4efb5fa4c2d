package blackboard

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("x", 5))

	v, err := Get[int](sc, "x")
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestGet_TypeMismatch(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("x", 5))

	_, err := Get[string](sc, "x")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTypeMismatch)

	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, "x", mismatch.Key)
	require.Equal(t, reflect.TypeOf(0), mismatch.Stored)
	require.Equal(t, reflect.TypeOf(""), mismatch.Requested)
}

type meters float64

type label string

func (l label) String() string { return string(l) }

func TestGet_MatchesStoredType(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("distance", meters(12.5)))
	require.NoError(t, sc.Set("name", label("gauge-1")))
	require.NoError(t, sc.Set("count", 3))

	// A named type is not its underlying type.
	_, err := Get[float64](sc, "distance")
	require.ErrorIs(t, err, ErrTypeMismatch)
	d, err := Get[meters](sc, "distance")
	require.NoError(t, err)
	require.Equal(t, meters(12.5), d)

	// Interfaces match by implementation.
	s, err := Get[fmt.Stringer](sc, "name")
	require.NoError(t, err)
	require.Equal(t, "gauge-1", s.String())

	_, err = Get[fmt.Stringer](sc, "count")
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, reflect.TypeOf(0), mismatch.Stored)
	require.Equal(t, reflect.TypeOf((*fmt.Stringer)(nil)).Elem(), mismatch.Requested)

	v, err := Get[any](sc, "count")
	require.NoError(t, err)
	require.Equal(t, 3, v)

	_, ok := TryGet[fmt.Stringer](sc, "count")
	require.False(t, ok)
}

func TestGet_KeyNotFound(t *testing.T) {
	sc := New()

	_, err := Get[int](sc, "missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.NotErrorIs(t, err, ErrTypeMismatch)
}

func TestTryGet(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("name", "wind"))

	_, ok := TryGet[int](sc, "missing")
	require.False(t, ok)

	_, ok = TryGet[int](sc, "name")
	require.False(t, ok, "type mismatch reads as not found")

	v, ok := TryGet[string](sc, "name")
	require.True(t, ok)
	require.Equal(t, "wind", v)
}

func TestGetOrDefault(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("speed", 3.5))

	require.Equal(t, 3.5, GetOrDefault(sc, "speed", 0.0))
	require.Equal(t, 7, GetOrDefault(sc, "speed", 7))
	require.Equal(t, "d", GetOrDefault(sc, "missing", "d"))
}

func TestSet_ReplacesValueAndType(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("k", 1))
	require.NoError(t, sc.Set("k", "one"))

	_, err := Get[int](sc, "k")
	require.ErrorIs(t, err, ErrTypeMismatch)

	v, err := Get[string](sc, "k")
	require.NoError(t, err)
	require.Equal(t, "one", v)
}

func TestInvalidArguments(t *testing.T) {
	sc := New()

	require.ErrorIs(t, sc.Set("", 1), ErrInvalidArgument)
	require.ErrorIs(t, sc.Set("k", nil), ErrInvalidArgument)

	_, err := Get[int](sc, "")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = sc.Remove("")
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.False(t, sc.Contains(""))
	_, ok := TryGet[int](sc, "")
	require.False(t, ok)
}

func TestKeysAreCaseSensitive(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("Key", 1))
	require.NoError(t, sc.Set("key", 2))

	require.Equal(t, []string{"Key", "key"}, sc.Keys())
	require.Equal(t, 2, sc.Len())
}

func TestRemoveAndClear(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("a", 1))
	require.NoError(t, sc.Set("b", 2))

	removed, err := sc.Remove("a")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = sc.Remove("a")
	require.NoError(t, err)
	require.False(t, removed)
	require.False(t, sc.Contains("a"))

	sc.Clear()
	require.Equal(t, 0, sc.Len())
	require.Empty(t, sc.Keys())
}

func TestSnapshot_IsIndependent(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("x", 1))

	snap := sc.Snapshot()
	require.NoError(t, sc.Set("x", 2))
	require.NoError(t, sc.Set("y", 3))
	_, _ = sc.Remove("x")

	require.Equal(t, map[string]any{"x": 1}, snap)

	snap["z"] = 9
	require.False(t, sc.Contains("z"))
}

func TestRestore(t *testing.T) {
	sc := New()
	require.NoError(t, sc.Set("old", true))

	require.NoError(t, sc.Restore(map[string]any{"a": 1.5}))
	require.False(t, sc.Contains("old"))
	v, err := Get[float64](sc, "a")
	require.NoError(t, err)
	require.Equal(t, 1.5, v)

	require.ErrorIs(t, sc.Restore(map[string]any{"": 1}), ErrInvalidArgument)
}

func TestConcurrentAccess(t *testing.T) {
	sc := New()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("model-%d", w)
			for i := 0; i < 200; i++ {
				require.NoError(t, sc.Set(key, i))
				_, _ = TryGet[int](sc, key)
				_ = sc.Keys()
				_ = sc.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 8, sc.Len())
	for w := 0; w < 8; w++ {
		v, err := Get[int](sc, fmt.Sprintf("model-%d", w))
		require.NoError(t, err)
		require.Equal(t, 199, v)
	}
}
