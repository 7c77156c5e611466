// File path: internal/data/orchestrator/options.go
package orchestrator

import (
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/tools"
)

type Option func(*options)

type options struct {
	store    docstore.Store
	gates    *gate.Resolver
	registry *tools.Registry
	now      func() time.Time
}

// WithDocumentStore injects a document store instead of opening one from the
// configured policy. Primarily used in tests.
func WithDocumentStore(store docstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithGates replaces the gate requirement tables.
func WithGates(gates *gate.Resolver) Option {
	return func(o *options) {
		o.gates = gates
	}
}

// WithToolRegistry replaces the built-in tool registry.
func WithToolRegistry(registry *tools.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithClock fixes the clock used by every service.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
