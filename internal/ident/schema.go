package ident

import "fmt"

// Schema names the positions of a key. Every key handled by one
// controller instance must conform to the instance's schema.
type Schema struct {
	Names []string
}

// NewSchema builds a schema from field names.
func NewSchema(names ...string) Schema {
	return Schema{Names: names}
}

// Arity returns the number of fields a conforming key carries.
func (s Schema) Arity() int {
	return len(s.Names)
}

// Validate checks the schema itself: at least one field, no empty or
// duplicate names.
func (s Schema) Validate() error {
	if len(s.Names) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]struct{}, len(s.Names))
	for i, name := range s.Names {
		if name == "" {
			return fmt.Errorf("schema field %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("schema field %q appears twice", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Conform checks a key against the schema: exact arity, no nil fields.
func (s Schema) Conform(k Key) error {
	if len(k) != len(s.Names) {
		return fmt.Errorf("key %s has %d fields, schema %v wants %d",
			k, len(k), s.Names, len(s.Names))
	}
	for i, f := range k {
		if f == nil {
			return fmt.Errorf("key field %q is nil", s.Names[i])
		}
	}
	return nil
}

// Get returns the field at the named position.
func (s Schema) Get(k Key, name string) (Field, bool) {
	for i, n := range s.Names {
		if n == name && i < len(k) {
			return k[i], true
		}
	}
	return nil, false
}
