package engine

import (
	"sync"

	"github.com/google/uuid"
)

// HandleGenerator produces handles for started units.
type HandleGenerator interface {
	Generate() string
}

// UUIDHandles generates time-sortable UUIDv7 handles.
//
// UUIDv7 embeds a timestamp in the most significant bits, so handles
// in the ledger sort by start time.
//
// Thread-safety: UUIDHandles is stateless and safe for concurrent use.
type UUIDHandles struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDHandles) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedHandles returns predetermined handles for testing.
//
// This enables deterministic ledger contents and golden comparison.
//
// Thread-safety: FixedHandles is safe for concurrent use via internal
// mutex.
type FixedHandles struct {
	mu      sync.Mutex
	handles []string
	idx     int
}

// NewFixedHandles creates a generator that returns handles in order.
//
// Example:
//
//	gen := NewFixedHandles("unit-1", "unit-2")
//	gen.Generate() // "unit-1"
//	gen.Generate() // "unit-2"
//	gen.Generate() // panic: all handles exhausted
func NewFixedHandles(handles ...string) *FixedHandles {
	return &FixedHandles{handles: handles}
}

// Generate returns the next predetermined handle.
//
// Panics when all handles have been consumed. Fail-fast catches test
// misconfiguration (the test started more units than it expected to).
func (g *FixedHandles) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.handles) {
		panic("FixedHandles: all handles exhausted")
	}
	handle := g.handles[g.idx]
	g.idx++
	return handle
}
