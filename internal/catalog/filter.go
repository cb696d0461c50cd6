package catalog

import (
	"fmt"
	"strings"

	"github.com/roach88/sluice/internal/ident"
)

// Predicate filters work units by their identity fields.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and
// enables exhaustive type switches in the SQL compiler.
//
// Predicate types:
//   - Equals: field = literal value
//   - And: all predicates must be true
//
// OR and range predicates are deliberately absent: a group that needs
// them is better split into separate groups with their own controllers.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Equals matches units whose named field equals a literal value.
//
// Example:
//
//	Equals{Field: "prefix", Value: ident.S("pbe")}
//
// compiles to:
//
//	json_extract(identity, '$[0]') = ?
//
// with the value always passed as a parameter, never interpolated.
type Equals struct {
	Field string      // schema field name
	Value ident.Field // literal to match
}

func (Equals) predicateNode() {}

// And matches units satisfying every predicate. An empty slice is
// always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// OrderBy names a schema field to order enumeration by, ahead of the
// canonical-identity tiebreaker.
type OrderBy struct {
	Field string
	Desc  bool
}

// fieldColumn maps a schema field name to a json_extract expression
// over the canonical identity column. Positions come from the schema,
// so the SQL never contains caller-controlled text.
func fieldColumn(name string, schema ident.Schema) (string, error) {
	for i, n := range schema.Names {
		if n == name {
			return fmt.Sprintf("json_extract(identity, '$[%d]')", i), nil
		}
	}
	return "", fmt.Errorf("unknown field %q, schema has %v", name, schema.Names)
}

// fieldParam converts a field to a native SQL parameter. Booleans bind
// as integers, matching how json_extract surfaces JSON booleans.
func fieldParam(f ident.Field) (any, error) {
	switch v := f.(type) {
	case ident.FieldString:
		return string(v), nil
	case ident.FieldInt:
		return int64(v), nil
	case ident.FieldBool:
		if bool(v) {
			return int64(1), nil
		}
		return int64(0), nil
	case nil:
		return nil, fmt.Errorf("nil field cannot be a filter value")
	default:
		return nil, fmt.Errorf("unsupported field type for SQL parameter: %T", f)
	}
}

// compilePredicate compiles a predicate tree to a SQL fragment plus
// parameters. Values are NEVER interpolated - always ? placeholders.
func compilePredicate(p Predicate, schema ident.Schema) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred, schema)
	case *Equals:
		return compileEquals(*pred, schema)
	case And:
		return compileAnd(pred, schema)
	case *And:
		return compileAnd(*pred, schema)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals, schema ident.Schema) (string, []any, error) {
	column, err := fieldColumn(eq.Field, schema)
	if err != nil {
		return "", nil, err
	}
	param, err := fieldParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", eq.Field, err)
	}
	return column + " = ?", []any{param}, nil
}

func compileAnd(and And, schema ident.Schema) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var parts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := compilePredicate(pred, schema)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(parts, " AND "), allParams, nil
}

// compileOrder builds the ORDER BY clause. The canonical identity
// tiebreaker is always appended so enumeration order stays total even
// when every ordering field ties.
func compileOrder(orders []OrderBy, schema ident.Schema) (string, error) {
	clauses := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		column, err := fieldColumn(o.Field, schema)
		if err != nil {
			return "", fmt.Errorf("order by: %w", err)
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		clauses = append(clauses, column+dir)
	}
	clauses = append(clauses, "identity COLLATE BINARY ASC")
	return " ORDER BY " + strings.Join(clauses, ", "), nil
}
