// Package store provides SQLite-backed durable storage for the
// submission ledger.
//
// Two tables, both scoped by group label:
//   - submissions: one row per submitted unit of work, identity plus
//     opaque engine handle plus a sealed flag that flips when the unit
//     reaches a terminal state
//   - work_units: seeded identity rows that back a store-resident
//     catalog
//
// Identity columns store the RFC 8785 canonical JSON array produced by
// ident.Key.Canon; UNIQUE(group_label, identity) is what makes repeat
// submission of one identity structurally impossible. Writes use
// INSERT ... ON CONFLICT DO NOTHING so re-recording an identity is a
// no-op, reported to the caller through the inserted flag.
//
// All list queries order by seq ASC, identity ASC COLLATE BINARY so
// results are stable across runs.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// The connection pool is pinned to a single connection. The ledger
// assumes a single writing process; one connection keeps that
// assumption structural rather than conventional.
package store
