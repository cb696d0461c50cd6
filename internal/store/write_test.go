package store

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/sluice/internal/ident"
)

func TestInsert_NewIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inserted, err := s.Insert(ctx, "g1", testKey("pbe", 1), "handle-1")
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if !inserted {
		t.Error("Insert() reported inserted=false for a new identity")
	}
}

func TestInsert_DuplicateIdentityIsNoOp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "g1", testKey("pbe", 1), "handle-1"); err != nil {
		t.Fatalf("first Insert() failed: %v", err)
	}

	inserted, err := s.Insert(ctx, "g1", testKey("pbe", 1), "handle-2")
	if err != nil {
		t.Fatalf("second Insert() failed: %v", err)
	}
	if inserted {
		t.Error("second Insert() for same identity reported inserted=true")
	}

	// The original handle must survive the no-op
	rec, err := s.Lookup(ctx, "g1", testKey("pbe", 1))
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if rec.Handle != "handle-1" {
		t.Errorf("handle = %q, want %q (first write wins)", rec.Handle, "handle-1")
	}
}

func TestInsert_SameIdentityAcrossGroups(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, group := range []string{"g1", "g2"} {
		inserted, err := s.Insert(ctx, group, testKey("pbe", 1), "h-"+group)
		if err != nil {
			t.Fatalf("Insert() into %q failed: %v", group, err)
		}
		if !inserted {
			t.Errorf("Insert() into %q reported inserted=false", group)
		}
	}
}

func TestInsert_NilFieldRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "g1", ident.Key{ident.S("a"), nil}, "h1")
	if err == nil {
		t.Error("expected error for key with nil field, got nil")
	}
}

func TestInsert_UsesClockForCreatedAt(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	fixedClock(s, at)

	if _, err := s.Insert(ctx, "g1", testKey("pbe", 1), "h1"); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	rec, err := s.Lookup(ctx, "g1", testKey("pbe", 1))
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if !rec.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, at)
	}
}

func TestSeal_TransitionsOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "g1", testKey("pbe", 1), "h1"); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	sealed, err := s.Seal(ctx, "g1", "h1")
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if !sealed {
		t.Error("first Seal() reported sealed=false")
	}

	// Second seal is a no-op
	sealed, err = s.Seal(ctx, "g1", "h1")
	if err != nil {
		t.Fatalf("second Seal() failed: %v", err)
	}
	if sealed {
		t.Error("second Seal() reported sealed=true")
	}
}

func TestSeal_UnknownHandle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sealed, err := s.Seal(ctx, "g1", "no-such-handle")
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if sealed {
		t.Error("Seal() of unknown handle reported sealed=true")
	}
}

func TestSeal_ScopedToGroup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "g1", testKey("pbe", 1), "h1"); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	// Sealing the handle under the wrong group must not touch the row
	sealed, err := s.Seal(ctx, "g2", "h1")
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if sealed {
		t.Error("Seal() under wrong group reported sealed=true")
	}

	count, err := s.ActiveCount(ctx, "g1")
	if err != nil {
		t.Fatalf("ActiveCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("ActiveCount() = %d, want 1", count)
	}
}

func TestSealByKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "g1", testKey("pbe", 1), "h1"); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	sealed, err := s.SealByKey(ctx, "g1", testKey("pbe", 1))
	if err != nil {
		t.Fatalf("SealByKey() failed: %v", err)
	}
	if !sealed {
		t.Error("SealByKey() reported sealed=false")
	}

	count, err := s.ActiveCount(ctx, "g1")
	if err != nil {
		t.Fatalf("ActiveCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("ActiveCount() = %d after seal, want 0", count)
	}
}

func TestAddUnits_InsertsAndDedupes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	added, err := s.AddUnits(ctx, "g1", []ident.Key{
		testKey("pbe", 1),
		testKey("pbe", 2),
	})
	if err != nil {
		t.Fatalf("AddUnits() failed: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	// Overlapping second batch only adds the new unit
	added, err = s.AddUnits(ctx, "g1", []ident.Key{
		testKey("pbe", 2),
		testKey("pbe", 3),
	})
	if err != nil {
		t.Fatalf("second AddUnits() failed: %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	units, err := s.Units(ctx, "g1")
	if err != nil {
		t.Fatalf("Units() failed: %v", err)
	}
	if len(units) != 3 {
		t.Errorf("len(units) = %d, want 3", len(units))
	}
}

func TestAddUnits_BadKeyRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AddUnits(ctx, "g1", []ident.Key{
		testKey("pbe", 1),
		{ident.S("pbe"), nil},
	})
	if err == nil {
		t.Fatal("expected error for key with nil field, got nil")
	}

	// The whole batch must roll back
	units, err := s.Units(ctx, "g1")
	if err != nil {
		t.Fatalf("Units() failed: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("len(units) = %d after rollback, want 0", len(units))
	}
}
