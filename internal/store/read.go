package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/sluice/internal/ident"
)

// Record is one row of the submission ledger.
type Record struct {
	Seq       int64
	Group     string
	Key       ident.Key
	Handle    string
	Sealed    bool
	CreatedAt time.Time
}

// Known returns the identities already recorded for a group, keyed by
// canonical form. Returns an empty map (not nil) when the group has no
// submissions.
func (s *Store) Known(ctx context.Context, group string) (map[string]ident.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity
		FROM submissions
		WHERE group_label = ?
		ORDER BY seq ASC, identity COLLATE BINARY ASC
	`, group)
	if err != nil {
		return nil, fmt.Errorf("query known identities: %w", err)
	}
	defer rows.Close()

	known := make(map[string]ident.Key)
	for rows.Next() {
		var canon string
		if err := rows.Scan(&canon); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		key, err := ident.ParseCanon(canon)
		if err != nil {
			return nil, fmt.Errorf("ledger row for group %q is corrupt: %w", group, err)
		}
		known[canon] = key
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known identities: %w", err)
	}

	return known, nil
}

// ActiveCount returns the number of unsealed submissions in a group.
func (s *Store) ActiveCount(ctx context.Context, group string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM submissions
		WHERE group_label = ? AND sealed = 0
	`, group).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active submissions: %w", err)
	}
	return count, nil
}

// Records returns all submissions for a group in insertion order.
// Returns an empty slice (not nil) when the group has none.
func (s *Store) Records(ctx context.Context, group string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, group_label, identity, handle, sealed, created_at
		FROM submissions
		WHERE group_label = ?
		ORDER BY seq ASC, identity COLLATE BINARY ASC
	`, group)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	if records == nil {
		records = []Record{}
	}

	return records, nil
}

// Lookup retrieves the single submission for an identity.
// Returns sql.ErrNoRows if the identity was never recorded; the UNIQUE
// constraint guarantees at most one match.
func (s *Store) Lookup(ctx context.Context, group string, key ident.Key) (Record, error) {
	canon, err := key.Canon()
	if err != nil {
		return Record{}, fmt.Errorf("lookup submission: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT seq, group_label, identity, handle, sealed, created_at
		FROM submissions
		WHERE group_label = ? AND identity = ?
	`, group, canon)

	return scanRecordRow(row)
}

// Units returns the seeded work units for a group in insertion order.
// Returns an empty slice (not nil) when the group has none.
func (s *Store) Units(ctx context.Context, group string) ([]ident.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity
		FROM work_units
		WHERE group_label = ?
		ORDER BY seq ASC, identity COLLATE BINARY ASC
	`, group)
	if err != nil {
		return nil, fmt.Errorf("query work units: %w", err)
	}
	defer rows.Close()

	var units []ident.Key
	for rows.Next() {
		var canon string
		if err := rows.Scan(&canon); err != nil {
			return nil, fmt.Errorf("scan work unit: %w", err)
		}
		key, err := ident.ParseCanon(canon)
		if err != nil {
			return nil, fmt.Errorf("work unit for group %q is corrupt: %w", group, err)
		}
		units = append(units, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work units: %w", err)
	}

	if units == nil {
		units = []ident.Key{}
	}

	return units, nil
}

// scanRecord scans a submissions row into a Record.
func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var canon, createdAt string
	var sealed int

	if err := rows.Scan(&rec.Seq, &rec.Group, &canon, &rec.Handle, &sealed, &createdAt); err != nil {
		return Record{}, fmt.Errorf("scan submission: %w", err)
	}

	return fillRecord(rec, canon, sealed, createdAt)
}

// scanRecordRow scans a single submissions row into a Record.
func scanRecordRow(row *sql.Row) (Record, error) {
	var rec Record
	var canon, createdAt string
	var sealed int

	if err := row.Scan(&rec.Seq, &rec.Group, &canon, &rec.Handle, &sealed, &createdAt); err != nil {
		return Record{}, err
	}

	return fillRecord(rec, canon, sealed, createdAt)
}

func fillRecord(rec Record, canon string, sealed int, createdAt string) (Record, error) {
	key, err := ident.ParseCanon(canon)
	if err != nil {
		return Record{}, fmt.Errorf("ledger row %d is corrupt: %w", rec.Seq, err)
	}
	rec.Key = key
	rec.Sealed = sealed != 0

	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("ledger row %d has bad timestamp %q: %w", rec.Seq, createdAt, err)
	}
	rec.CreatedAt = ts

	return rec, nil
}
