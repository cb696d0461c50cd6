package admission

import (
	"time"

	"github.com/roach88/sluice/internal/ident"
)

// Stage records how far one identity got through the submit sequence.
type Stage string

const (
	// StageSelected is a dry-run outcome: the identity was chosen for
	// the batch but no payload was built, nothing started, nothing was
	// written.
	StageSelected Stage = "selected"

	// StagePayload means payload construction failed. The engine was
	// never called for this identity.
	StagePayload Stage = "payload"

	// StageSubmit means the engine refused to start the unit. Nothing
	// is running and nothing was recorded; a later batch retries.
	StageSubmit Stage = "submit"

	// StageRecord means the ledger write failed after a successful
	// start. The unit is running but untracked; this outcome aborts the
	// rest of the batch.
	StageRecord Stage = "record"

	// StageSubmitted means the unit started and its record is durable.
	StageSubmitted Stage = "submitted"
)

// Outcome is the per-identity result of one batch.
//
// Err is nil exactly when Stage is StageSelected or StageSubmitted.
// Handle is set on StageSubmitted, and on StageRecord where a handle
// exists but could not be recorded.
type Outcome struct {
	Key    ident.Key
	Canon  string
	Handle string
	Stage  Stage
	Err    error
}

// BatchResult reports one SubmitBatch invocation: the reconciliation
// snapshot the batch acted on, and the per-identity outcomes in
// submission order.
type BatchResult struct {
	Group  string
	DryRun bool

	Targets int // identities the catalog enumerated
	Known   int // identities already in the ledger
	Pending int // Targets minus Known, before capacity truncation
	Active  int // active submissions at the capacity snapshot
	Free    int // capacity snapshot: max(0, MaxActive - Active)

	// Outcomes holds one entry per selected identity, in the order the
	// batch processed them. len(Outcomes) <= Free always.
	Outcomes []Outcome

	Started time.Time
	Elapsed time.Duration
}

// Selected returns how many identities were chosen for this batch.
func (r *BatchResult) Selected() int {
	return len(r.Outcomes)
}

// Submitted returns how many identities started and were recorded.
func (r *BatchResult) Submitted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Stage == StageSubmitted {
			n++
		}
	}
	return n
}

// Failed returns how many identities failed at any stage.
func (r *BatchResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Handles returns canonical identity to handle for every submitted
// outcome. A derived view; the authoritative record is Outcomes.
func (r *BatchResult) Handles() map[string]string {
	handles := make(map[string]string)
	for _, o := range r.Outcomes {
		if o.Stage == StageSubmitted {
			handles[o.Canon] = o.Handle
		}
	}
	return handles
}
