package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/sluice/internal/ident"
)

// createTestStore creates a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock pins the store's timestamp source for deterministic rows.
func fixedClock(s *Store, at time.Time) {
	s.now = func() time.Time { return at }
}

// testKey builds a two-field key in the shape most tests use.
func testKey(name string, n int64) ident.Key {
	return ident.Of(ident.S(name), ident.I(n))
}
