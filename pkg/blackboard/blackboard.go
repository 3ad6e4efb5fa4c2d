package blackboard

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// entry is a stored value tagged with its dynamic type.
type entry struct {
	value any
	typ   reflect.Type
}

// SharedContext is a thread-safe, type-checked blackboard.
//
// A single reader-writer mutex guards the whole map: reads run in parallel,
// a write excludes every other access, so no reader observes a partial write.
type SharedContext struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty SharedContext.
func New() *SharedContext {
	return &SharedContext{
		entries: make(map[string]entry),
	}
}

// Set stores value under key, replacing any existing value and its type.
func (c *SharedContext) Set(key string, value any) error {
	if key == "" {
		return fmt.Errorf("set: empty key: %w", ErrInvalidArgument)
	}
	if value == nil {
		return fmt.Errorf("set %q: nil value: %w", key, ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, typ: reflect.TypeOf(value)}
	return nil
}

// Get returns the value stored under key as T.
//
// A concrete T must equal the type the value was stored with; a named type
// and its underlying type are different types. An interface T matches any
// stored type implementing it, so Get[any] never mismatches.
//
// It fails with ErrKeyNotFound when the key is absent and with a
// *TypeMismatchError when the stored type does not match T.
func Get[T any](c *SharedContext, key string) (T, error) {
	var zero T
	if key == "" {
		return zero, fmt.Errorf("get: empty key: %w", ErrInvalidArgument)
	}

	e, ok := c.lookup(key)
	if !ok {
		return zero, fmt.Errorf("get %q: %w", key, ErrKeyNotFound)
	}

	requested := reflect.TypeOf((*T)(nil)).Elem()
	if !typeMatches(e.typ, requested) {
		return zero, &TypeMismatchError{
			Key:       key,
			Stored:    e.typ,
			Requested: requested,
		}
	}
	return e.value.(T), nil
}

func typeMatches(stored, requested reflect.Type) bool {
	if requested.Kind() == reflect.Interface {
		return stored.Implements(requested)
	}
	return stored == requested
}

// TryGet returns the value stored under key as T. A missing key, an empty
// key and a type mismatch all report false.
func TryGet[T any](c *SharedContext, key string) (T, bool) {
	v, err := Get[T](c, key)
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// GetOrDefault returns the value stored under key as T, or def when TryGet
// would report false.
func GetOrDefault[T any](c *SharedContext, key string, def T) T {
	if v, ok := TryGet[T](c, key); ok {
		return v
	}
	return def
}

// Contains reports whether key holds a value.
func (c *SharedContext) Contains(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Remove deletes key and reports whether a value was removed.
func (c *SharedContext) Remove(key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("remove: empty key: %w", ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false, nil
	}
	delete(c.entries, key)
	return true, nil
}

// Keys returns the current keys in ascending order.
func (c *SharedContext) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (c *SharedContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *SharedContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Snapshot returns a point-in-time copy of all entries. Later writes to the
// context do not show up in the returned map, and writes to the map do not
// reach the context. Stored values themselves are copied shallowly.
func (c *SharedContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.entries))
	for k, e := range c.entries {
		out[k] = e.value
	}
	return out
}

// Restore replaces the whole content with values, typically a previously
// persisted snapshot.
func (c *SharedContext) Restore(values map[string]any) error {
	for k, v := range values {
		if k == "" || v == nil {
			return fmt.Errorf("restore %q: %w", k, ErrInvalidArgument)
		}
	}

	entries := make(map[string]entry, len(values))
	for k, v := range values {
		entries[k] = entry{value: v, typ: reflect.TypeOf(v)}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

func (c *SharedContext) lookup(key string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}
