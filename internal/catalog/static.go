package catalog

import (
	"context"
	"slices"

	"github.com/roach88/sluice/internal/ident"
)

// Static enumerates a fixed key list. Meant for tests and for
// embedders that already hold their targets in memory.
type Static struct {
	keys []ident.Key
}

// NewStatic copies the keys into a catalog, so later mutation of the
// caller's slice cannot leak into enumeration.
func NewStatic(keys ...ident.Key) *Static {
	return &Static{keys: slices.Clone(keys)}
}

// Enumerate returns the keys in insertion order.
func (s *Static) Enumerate(_ context.Context) ([]ident.Key, error) {
	return slices.Clone(s.keys), nil
}

// Len returns the number of keys in the catalog.
func (s *Static) Len() int {
	return len(s.keys)
}
