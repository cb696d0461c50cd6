package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/ident"
)

func twoFieldSchema() ident.Schema {
	return ident.NewSchema("prefix", "index")
}

func TestCompilePredicate_Nil(t *testing.T) {
	sql, params, err := compilePredicate(nil, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, params)
}

func TestCompileEquals_String(t *testing.T) {
	sql, params, err := compilePredicate(
		Equals{Field: "prefix", Value: ident.S("pbe")}, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t, "json_extract(identity, '$[0]') = ?", sql)
	assert.Equal(t, []any{"pbe"}, params)
}

func TestCompileEquals_Int(t *testing.T) {
	sql, params, err := compilePredicate(
		Equals{Field: "index", Value: ident.I(42)}, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t, "json_extract(identity, '$[1]') = ?", sql)
	assert.Equal(t, []any{int64(42)}, params)
}

func TestCompileEquals_BoolBindsAsInteger(t *testing.T) {
	schema := ident.NewSchema("name", "ready")

	sql, params, err := compilePredicate(
		Equals{Field: "ready", Value: ident.B(true)}, schema)
	require.NoError(t, err)
	assert.Equal(t, "json_extract(identity, '$[1]') = ?", sql)
	// json_extract surfaces JSON booleans as 0/1.
	assert.Equal(t, []any{int64(1)}, params)

	_, params, err = compilePredicate(
		Equals{Field: "ready", Value: ident.B(false)}, schema)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0)}, params)
}

func TestCompileEquals_UnknownField(t *testing.T) {
	_, _, err := compilePredicate(
		Equals{Field: "missing", Value: ident.S("x")}, twoFieldSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "missing"`)
}

func TestCompileEquals_NilValue(t *testing.T) {
	_, _, err := compilePredicate(
		Equals{Field: "prefix", Value: nil}, twoFieldSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil field")
}

func TestCompileAnd_Empty(t *testing.T) {
	sql, params, err := compilePredicate(And{}, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, params)
}

func TestCompileAnd_JoinsWithParamsInOrder(t *testing.T) {
	pred := And{Predicates: []Predicate{
		Equals{Field: "prefix", Value: ident.S("pbe")},
		Equals{Field: "index", Value: ident.I(7)},
	}}

	sql, params, err := compilePredicate(pred, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t,
		"json_extract(identity, '$[0]') = ? AND json_extract(identity, '$[1]') = ?",
		sql)
	assert.Equal(t, []any{"pbe", int64(7)}, params)
}

func TestCompileAnd_Nested(t *testing.T) {
	pred := And{Predicates: []Predicate{
		Equals{Field: "prefix", Value: ident.S("pbe")},
		And{Predicates: []Predicate{
			Equals{Field: "index", Value: ident.I(1)},
		}},
	}}

	sql, params, err := compilePredicate(pred, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t,
		"json_extract(identity, '$[0]') = ? AND json_extract(identity, '$[1]') = ?",
		sql)
	assert.Equal(t, []any{"pbe", int64(1)}, params)
}

func TestCompilePredicate_PointerForms(t *testing.T) {
	sql, params, err := compilePredicate(
		&Equals{Field: "prefix", Value: ident.S("x")}, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t, "json_extract(identity, '$[0]') = ?", sql)
	assert.Equal(t, []any{"x"}, params)

	sql, _, err = compilePredicate(&And{}, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
}

func TestCompileOrder_DefaultTiebreakerOnly(t *testing.T) {
	order, err := compileOrder(nil, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY identity COLLATE BINARY ASC", order)
}

func TestCompileOrder_FieldsThenTiebreaker(t *testing.T) {
	order, err := compileOrder([]OrderBy{
		{Field: "index", Desc: true},
		{Field: "prefix"},
	}, twoFieldSchema())
	require.NoError(t, err)
	assert.Equal(t,
		" ORDER BY json_extract(identity, '$[1]') DESC, json_extract(identity, '$[0]') ASC, identity COLLATE BINARY ASC",
		order)
}

func TestCompileOrder_UnknownField(t *testing.T) {
	_, err := compileOrder([]OrderBy{{Field: "nope"}}, twoFieldSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "nope"`)
}
