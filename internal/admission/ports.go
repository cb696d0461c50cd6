package admission

import (
	"context"

	"github.com/roach88/sluice/internal/ident"
)

// Catalog enumerates the universe of identities that should eventually
// be submitted. The controller treats it as a read-only oracle.
type Catalog interface {
	// Enumerate returns every target identity. It must be a repeatable
	// query with no side effects and must never return duplicates; the
	// controller verifies the latter and aborts the batch on violation.
	Enumerate(ctx context.Context) ([]ident.Key, error)
}

// Store is the durable submission ledger, the single source of truth
// for "has this identity already been submitted". Reads must observe
// the same instance's earlier writes.
type Store interface {
	// Known returns every recorded identity, keyed by canonical form.
	Known(ctx context.Context) (map[string]ident.Key, error)

	// ActiveCount returns the number of recorded submissions not yet in
	// a terminal state.
	ActiveCount(ctx context.Context) (int, error)

	// Record durably associates an identity with the handle of its
	// running unit. Recording an already-known identity is a no-op, not
	// an error.
	Record(ctx context.Context, key ident.Key, handle string) error
}

// PayloadFactory maps an identity to whatever the execution engine
// needs to start that unit of work. The payload is opaque to the
// controller; it flows straight from the factory into Engine.Start.
type PayloadFactory interface {
	Payload(ctx context.Context, key ident.Key) (any, error)
}

// FactoryFunc adapts a plain function to the PayloadFactory interface.
type FactoryFunc func(ctx context.Context, key ident.Key) (any, error)

// Payload implements PayloadFactory.
func (f FactoryFunc) Payload(ctx context.Context, key ident.Key) (any, error) {
	return f(ctx, key)
}

// Engine starts one unit of work and returns an opaque handle for it.
type Engine interface {
	// Start begins execution of one unit. The returned handle names the
	// running unit in the ledger and in logs; the controller never
	// interprets it. An error means the unit did not start.
	Start(ctx context.Context, payload any) (string, error)
}
