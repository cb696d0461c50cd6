package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/admission"
	"github.com/roach88/sluice/internal/ident"
)

func TestCatalogInterfaces(t *testing.T) {
	var _ admission.Catalog = (*Static)(nil)
	var _ admission.Catalog = (*Group)(nil)
}

func TestStatic_EnumeratesInInsertionOrder(t *testing.T) {
	a := ident.Of(ident.S("b"), ident.I(2))
	b := ident.Of(ident.S("a"), ident.I(1))
	cat := NewStatic(a, b)

	keys, err := cat.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.True(t, keys[0].Equal(a))
	assert.True(t, keys[1].Equal(b))
	assert.Equal(t, 2, cat.Len())
}

func TestStatic_Empty(t *testing.T) {
	cat := NewStatic()

	keys, err := cat.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 0, cat.Len())
}

func TestStatic_CopiesInput(t *testing.T) {
	keys := []ident.Key{ident.Of(ident.S("a"))}
	cat := NewStatic(keys...)

	// Mutating the caller's slice must not reach the catalog.
	keys[0] = ident.Of(ident.S("mutated"))

	got, err := cat.Enumerate(context.Background())
	require.NoError(t, err)
	assert.True(t, got[0].Equal(ident.Of(ident.S("a"))))
}

func TestStatic_EnumerateReturnsFreshSlice(t *testing.T) {
	cat := NewStatic(ident.Of(ident.S("a")), ident.Of(ident.S("b")))

	first, err := cat.Enumerate(context.Background())
	require.NoError(t, err)
	first[0] = ident.Of(ident.S("clobbered"))

	second, err := cat.Enumerate(context.Background())
	require.NoError(t, err)
	assert.True(t, second[0].Equal(ident.Of(ident.S("a"))))
}
