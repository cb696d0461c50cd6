package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/sluice/internal/ident"
)

// Memory is an in-memory submission ledger with the same dedupe
// semantics as the SQLite store. Good for tests and ephemeral runs;
// nothing survives the process.
type Memory struct {
	mu    sync.Mutex
	recs  map[string]*memoryRecord
	order []string
}

type memoryRecord struct {
	key    ident.Key
	handle string
	sealed bool
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{recs: make(map[string]*memoryRecord)}
}

// Known returns the recorded identities keyed by canonical form.
func (m *Memory) Known(_ context.Context) (map[string]ident.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]ident.Key, len(m.recs))
	for canon, rec := range m.recs {
		known[canon] = rec.key
	}
	return known, nil
}

// ActiveCount returns the number of unsealed records.
func (m *Memory) ActiveCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, rec := range m.recs {
		if !rec.sealed {
			count++
		}
	}
	return count, nil
}

// Record stores a submission. Recording an identity that is already
// present is a no-op, matching the SQLite ON CONFLICT behavior.
func (m *Memory) Record(_ context.Context, key ident.Key, handle string) error {
	canon, err := key.Canon()
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.recs[canon]; exists {
		return nil
	}
	m.recs[canon] = &memoryRecord{key: key, handle: handle}
	m.order = append(m.order, canon)
	return nil
}

// Seal marks the record with the given handle terminal. Reports whether
// a record transitioned.
func (m *Memory) Seal(handle string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, canon := range m.order {
		rec := m.recs[canon]
		if rec.handle == handle && !rec.sealed {
			rec.sealed = true
			return true
		}
	}
	return false
}

// SealKey marks the record for an identity terminal.
func (m *Memory) SealKey(key ident.Key) bool {
	canon, err := key.Canon()
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recs[canon]
	if !ok || rec.sealed {
		return false
	}
	rec.sealed = true
	return true
}

// Handle returns the handle recorded for an identity.
func (m *Memory) Handle(key ident.Key) (string, bool) {
	canon, err := key.Canon()
	if err != nil {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recs[canon]
	if !ok {
		return "", false
	}
	return rec.handle, true
}

// Len returns the number of recorded identities.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}
