package admission

import (
	"slices"

	"github.com/roach88/sluice/internal/ident"
)

// Ordering decides which pending identities win when capacity is
// scarce: the batch keeps the first free-slot-many keys in order and
// the rest wait for a later cycle.
//
// The zero value is natural ascending key order.
type Ordering struct {
	catalogOrder bool
	cmp          func(a, b ident.Key) int
}

// Natural orders pending identities by ascending ident.Compare. This is
// the default, and the only ordering under which two runs over
// identical catalog and ledger state select identical batches.
func Natural() Ordering {
	return Ordering{}
}

// By orders pending identities with a caller-supplied comparator.
// Selection stays deterministic as long as the comparator is a total
// order; ties fall back to the pending set's pre-sort order.
func By(cmp func(a, b ident.Key) int) Ordering {
	return Ordering{cmp: cmp}
}

// CatalogOrder leaves pending identities in the order the catalog
// enumerated them. Selection is then only as reproducible as the
// catalog itself.
func CatalogOrder() Ordering {
	return Ordering{catalogOrder: true}
}

// sort orders the pending slice in place.
func (o Ordering) sort(pending []pendingUnit) {
	if o.catalogOrder {
		return
	}
	cmp := o.cmp
	if cmp == nil {
		cmp = ident.Compare
	}
	slices.SortStableFunc(pending, func(a, b pendingUnit) int {
		return cmp(a.key, b.key)
	})
}
