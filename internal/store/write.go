package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/sluice/internal/ident"
)

// Insert records a submission for one identity.
// Uses ON CONFLICT(group_label, identity) DO NOTHING so the same
// identity can be recorded at most once per group; inserted reports
// whether this call created the row. A false return with a nil error
// means the identity was already in the ledger.
func (s *Store) Insert(ctx context.Context, group string, key ident.Key, handle string) (inserted bool, err error) {
	canon, err := key.Canon()
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions
		(group_label, identity, handle, sealed, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(group_label, identity) DO NOTHING
	`,
		group,
		canon,
		handle,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert submission: rows affected: %w", err)
	}

	return rows > 0, nil
}

// Seal marks the submission with the given handle terminal.
// Returns whether a row transitioned; sealing an already-sealed or
// unknown handle reports false with a nil error.
func (s *Store) Seal(ctx context.Context, group, handle string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET sealed = 1
		WHERE group_label = ? AND handle = ? AND sealed = 0
	`, group, handle)
	if err != nil {
		return false, fmt.Errorf("seal submission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("seal submission: rows affected: %w", err)
	}

	return rows > 0, nil
}

// SealByKey marks the submission with the given identity terminal.
func (s *Store) SealByKey(ctx context.Context, group string, key ident.Key) (bool, error) {
	canon, err := key.Canon()
	if err != nil {
		return false, fmt.Errorf("seal submission: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET sealed = 1
		WHERE group_label = ? AND identity = ? AND sealed = 0
	`, group, canon)
	if err != nil {
		return false, fmt.Errorf("seal submission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("seal submission: rows affected: %w", err)
	}

	return rows > 0, nil
}

// AddUnits seeds work units for a group inside one transaction.
// Duplicate identities (within the call or against existing rows) are
// skipped; added reports how many rows this call created.
func (s *Store) AddUnits(ctx context.Context, group string, keys []ident.Key) (added int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add units: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, key := range keys {
		canon, err := key.Canon()
		if err != nil {
			return 0, fmt.Errorf("add units: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO work_units (group_label, identity)
			VALUES (?, ?)
			ON CONFLICT(group_label, identity) DO NOTHING
		`, group, canon)
		if err != nil {
			return 0, fmt.Errorf("add units: insert %s: %w", key, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("add units: rows affected: %w", err)
		}
		if rows > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add units: commit: %w", err)
	}

	return added, nil
}
