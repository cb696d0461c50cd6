package catalog

import (
	"context"
	"fmt"

	"github.com/roach88/sluice/internal/ident"
	"github.com/roach88/sluice/internal/store"
)

// Group enumerates the work units registered under a group label in
// the store. This is the production catalog: operators seed the group
// once and every later run enumerates the same set, so restarts and
// crashes cannot change what the controller considers targets.
type Group struct {
	store  *store.Store
	group  string
	schema ident.Schema
	filter Predicate
	orders []OrderBy
}

// GroupOption configures a Group catalog.
type GroupOption func(*Group)

// WithFilter restricts enumeration to units matching the predicate.
func WithFilter(p Predicate) GroupOption {
	return func(g *Group) {
		g.filter = p
	}
}

// WithOrderBy orders enumeration by a schema field ahead of the
// canonical tiebreaker. May be given more than once; earlier calls
// take precedence. Enumeration order only drives selection when the
// controller runs with catalog ordering.
func WithOrderBy(field string, desc bool) GroupOption {
	return func(g *Group) {
		g.orders = append(g.orders, OrderBy{Field: field, Desc: desc})
	}
}

// NewGroup builds a catalog over the store's registered work units.
// The filter and ordering compile at construction, so a predicate
// naming an unknown field fails here rather than on the first batch.
func NewGroup(st *store.Store, group string, schema ident.Schema, opts ...GroupOption) (*Group, error) {
	if st == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if group == "" {
		return nil, fmt.Errorf("group must not be empty")
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	g := &Group{store: st, group: group, schema: schema}
	for _, opt := range opts {
		opt(g)
	}

	if _, _, err := g.buildQuery(); err != nil {
		return nil, err
	}
	return g, nil
}

// Group returns the group label enumeration is scoped to.
func (g *Group) Group() string {
	return g.group
}

// buildQuery assembles the enumeration SQL and its parameters.
func (g *Group) buildQuery() (string, []any, error) {
	where := "group_label = ?"
	params := []any{g.group}

	if g.filter != nil {
		filterSQL, filterParams, err := compilePredicate(g.filter, g.schema)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	order, err := compileOrder(g.orders, g.schema)
	if err != nil {
		return "", nil, err
	}

	return "SELECT identity FROM work_units WHERE " + where + order, params, nil
}

// Enumerate returns the registered identities matching the filter, in
// the compiled order. Rows that fail to parse abort enumeration: a
// corrupt registration must surface, not silently shrink the universe.
func (g *Group) Enumerate(ctx context.Context) ([]ident.Key, error) {
	query, params, err := g.buildQuery()
	if err != nil {
		return nil, err
	}

	rows, err := g.store.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("enumerate work units: %w", err)
	}
	defer rows.Close()

	var keys []ident.Key
	for rows.Next() {
		var canon string
		if err := rows.Scan(&canon); err != nil {
			return nil, fmt.Errorf("scan work unit: %w", err)
		}
		key, err := ident.ParseCanon(canon)
		if err != nil {
			return nil, fmt.Errorf("work unit row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enumerate work units: %w", err)
	}
	return keys, nil
}
