package demo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/simorch/internal/application/orchestrator"
)

// Builder creates a fresh model instance.
type Builder func() orchestrator.Model

// Model kinds known to the default factory.
const (
	KindWind       = "wind"
	KindProjectile = "projectile"
	KindCounter    = "counter"
	KindFail       = "fail"
)

// Factory builds models by kind.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewFactory creates a factory with the demo kinds registered.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[string]Builder)}
	f.Register(KindWind, func() orchestrator.Model { return NewWind() })
	f.Register(KindProjectile, func() orchestrator.Model { return NewProjectile() })
	f.Register(KindCounter, func() orchestrator.Model { return NewCounter() })
	f.Register(KindFail, func() orchestrator.Model { return NewFail() })
	return f
}

// Register adds or replaces the builder for kind.
func (f *Factory) Register(kind string, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = builder
}

// New builds a model of the given kind.
func (f *Factory) New(kind string) (orchestrator.Model, error) {
	f.mu.RLock()
	builder, ok := f.builders[kind]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown model kind %q (known: %v)", kind, f.Kinds())
	}
	return builder(), nil
}

// Kinds returns the registered kinds in sorted order.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]string, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
