package app

import (
	"fmt"

	"github.com/blockberries/stateberry/logging"
	"github.com/blockberries/stateberry/metrics"
	"github.com/blockberries/stateberry/module"
	"github.com/blockberries/stateberry/store"
	"github.com/blockberries/stateberry/types"
)

// registeredModule pairs a module with the identifier it was registered
// under. Registration order is dispatch order.
type registeredModule struct {
	id  types.Identifier
	mod module.Module
}

// Builder assembles an App: it hands out module store handles, collects
// module registrations, and wires logging and metrics.
//
// The build sequence matters: a module needs its store handle before it can
// be constructed, so callers fetch the handle first, build the module
// around it, then register the module under the same identifier.
type Builder struct {
	logger  *logging.Logger
	metrics metrics.Metrics

	main         *store.SharedStore
	moduleStores map[string]*store.SharedStore
	modules      []registeredModule
}

// NewBuilder creates a builder with an in-memory main store, a no-op
// logger and no-op metrics.
func NewBuilder() *Builder {
	return &Builder{
		logger:       logging.NewNopLogger(),
		metrics:      metrics.NewNopMetrics(),
		main:         store.NewSharedStore(store.NewInMemoryStore()),
		moduleStores: make(map[string]*store.SharedStore),
	}
}

// WithLogger sets the application logger.
func (b *Builder) WithLogger(logger *logging.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics sets the application metrics sink.
func (b *Builder) WithMetrics(m metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// ModuleStore returns the store handle for the module registered (or to be
// registered) under id. Repeated calls for the same identifier return
// handles to the same underlying store, so the builder and the module
// observe the same state.
func (b *Builder) ModuleStore(id types.Identifier) *store.SharedStore {
	if s, ok := b.moduleStores[id.String()]; ok {
		return s.Share()
	}
	s := store.NewSharedStore(store.NewInMemoryStore())
	b.moduleStores[id.String()] = s
	return s.Share()
}

// AddModule registers a module under id. Modules are dispatched in
// registration order; registering the same identifier twice is an error.
func (b *Builder) AddModule(id types.Identifier, mod module.Module) error {
	if id.IsZero() {
		return types.ErrEmptyIdentifier
	}
	for _, r := range b.modules {
		if r.id == id {
			return fmt.Errorf("module %q: %w", id, types.ErrModuleRegistered)
		}
	}
	// Make sure the module's store exists even if the module never asked
	// for a handle.
	b.ModuleStore(id)
	b.modules = append(b.modules, registeredModule{id: id, mod: mod})
	return nil
}

// Build produces the App. The builder must not be reused afterwards.
func (b *Builder) Build() (*App, error) {
	if len(b.modules) == 0 {
		return nil, fmt.Errorf("building app: no modules registered")
	}
	return &App{
		logger:       b.logger.WithComponent("app"),
		metrics:      b.metrics,
		main:         b.main,
		moduleStores: b.moduleStores,
		modules:      b.modules,
	}, nil
}
