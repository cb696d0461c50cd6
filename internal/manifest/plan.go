package manifest

import (
	"context"

	"github.com/roach88/sluice/internal/admission"
	"github.com/roach88/sluice/internal/catalog"
	"github.com/roach88/sluice/internal/ident"
)

// Plan is a loaded submission manifest: everything one controller
// needs short of a store handle.
type Plan struct {
	// Group scopes the ledger rows this plan reads and writes.
	Group string

	// MaxActive caps concurrently running units for the group.
	MaxActive int

	// Schema names the identity fields, in order.
	Schema ident.Schema

	// Units lists the identities the plan wants running. Empty when
	// the catalog comes from somewhere else, such as ledger rows
	// seeded earlier.
	Units []ident.Key

	// Command is the template units are started from.
	Command CommandTemplate
}

// Config returns the controller configuration the plan describes.
func (p *Plan) Config() admission.Config {
	return admission.Config{
		Group:     p.Group,
		MaxActive: p.MaxActive,
		Schema:    p.Schema,
	}
}

// Catalog returns the plan's inline units as a static catalog.
func (p *Plan) Catalog() *catalog.Static {
	return catalog.NewStatic(p.Units...)
}

// Factory returns a payload factory that renders the plan's command
// template for each identity.
func (p *Plan) Factory() admission.FactoryFunc {
	schema := p.Schema
	tmpl := p.Command
	return func(_ context.Context, key ident.Key) (any, error) {
		return tmpl.Expand(schema, key)
	}
}
