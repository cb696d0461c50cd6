// Package admission implements the admission-controlled batch submitter.
//
// The controller sits between a work catalog (the universe of identities
// that should eventually run) and an execution engine with bounded
// concurrency. Each batch it reconciles the catalog against the durable
// submission ledger, computes how many concurrency slots are free, and
// submits at most that many new units.
//
// ARCHITECTURE:
//
// Reconcile-Select-Submit Cycle:
// 1. Enumerate the catalog and verify its integrity (duplicate-free,
//    schema-conforming identities)
// 2. Subtract the ledger's known identities to get the pending set
// 3. Snapshot free capacity: max(0, MaxActive - ActiveCount)
// 4. Order the pending set and keep the first capacity-many identities
// 5. Submit each selected identity sequentially: payload, engine start,
//    ledger record
//
// The submit loop is strictly sequential: one in-flight submission at a
// time, which gives natural backpressure against the engine. Admission
// throughput is bounded by the engine's start latency, and that is fine:
// the ceiling, not the loop, is the bottleneck that matters.
//
// Capacity is snapshotted once per batch, not re-queried per item. The
// ledger assumes a single submitting writer; under that model external
// sealing mid-batch can only free slots, so the snapshot is conservative
// and the ceiling holds. A second concurrent submitter voids the bound.
//
// Failure isolation: payload construction and engine start failures are
// per-unit - recorded in the unit's Outcome, the loop continues. Catalog
// integrity failures abort before any side effect. A ledger write
// failure after a successful start aborts the batch, because at that
// point a unit is running untracked.
//
// The collaborators (Catalog, Store, PayloadFactory, Engine) are
// caller-supplied interfaces injected at construction; the controller
// holds no hidden caches over them.
package admission
