package store

import (
	"context"

	"github.com/roach88/sluice/internal/ident"
)

// Ledger is a Store bound to one group label. It carries the three
// operations admission control needs and nothing else, so a controller
// cannot reach across groups.
type Ledger struct {
	store *Store
	group string
}

// Bind scopes the store to a group label.
func (s *Store) Bind(group string) *Ledger {
	return &Ledger{store: s, group: group}
}

// Group returns the bound group label.
func (l *Ledger) Group() string {
	return l.group
}

// Known returns the identities already recorded for the bound group,
// keyed by canonical form.
func (l *Ledger) Known(ctx context.Context) (map[string]ident.Key, error) {
	return l.store.Known(ctx, l.group)
}

// ActiveCount returns the number of unsealed submissions in the bound
// group.
func (l *Ledger) ActiveCount(ctx context.Context) (int, error) {
	return l.store.ActiveCount(ctx, l.group)
}

// Record writes a submission row for the identity. Recording an
// identity that is already in the ledger is a no-op.
func (l *Ledger) Record(ctx context.Context, key ident.Key, handle string) error {
	_, err := l.store.Insert(ctx, l.group, key, handle)
	return err
}
