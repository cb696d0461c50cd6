package ident

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a sealed interface over the scalar types allowed in a key.
// Only FieldString, FieldInt, and FieldBool implement it.
// NO FieldFloat - float equality truncates, which breaks identity.
type Field interface {
	identField() // Sealed - only these types implement it
}

// FieldString is a string-valued key field.
type FieldString string

func (FieldString) identField() {}

// FieldInt is an integer-valued key field. Always int64, never float64.
type FieldInt int64

func (FieldInt) identField() {}

// FieldBool is a boolean-valued key field.
type FieldBool bool

func (FieldBool) identField() {}

// S creates a FieldString.
func S(s string) FieldString {
	return FieldString(s)
}

// I creates a FieldInt.
func I(n int64) FieldInt {
	return FieldInt(n)
}

// B creates a FieldBool.
func B(b bool) FieldBool {
	return FieldBool(b)
}

// fieldRank orders field types relative to each other so that Compare is
// total over mixed-type positions: integers, then strings, then booleans.
func fieldRank(f Field) int {
	switch f.(type) {
	case FieldInt:
		return 0
	case FieldString:
		return 1
	case FieldBool:
		return 2
	default:
		// Unreachable for sealed Field; nil is caught before ranking.
		return 3
	}
}

// compareFields compares two non-nil fields. Different types order by
// fieldRank; same types order by value (false < true for booleans).
func compareFields(a, b Field) int {
	ra, rb := fieldRank(a), fieldRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case FieldInt:
		bv := b.(FieldInt)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case FieldString:
		return strings.Compare(string(av), string(b.(FieldString)))
	case FieldBool:
		bv := b.(FieldBool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	}
	return 0
}

// fieldFromAny converts a decoded JSON value into a Field.
// Rejects null, floats, and nested structures.
func fieldFromAny(v any) (Field, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in a key: fields must be string, int, or bool")
	case bool:
		return FieldBool(val), nil
	case string:
		return FieldString(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden in a key: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return FieldInt(n), nil
	default:
		return nil, fmt.Errorf("unsupported key field type: %T", v)
	}
}
