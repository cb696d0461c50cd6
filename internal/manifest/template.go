package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sluice/internal/engine"
	"github.com/roach88/sluice/internal/ident"
)

const placeholderOpen = "${key."

// CommandTemplate is an engine command with ${key.<field>}
// placeholders in its argv, env, and dir.
type CommandTemplate struct {
	Argv []string
	Dir  string
	Env  []string
}

// Expand renders the template for one identity. Every placeholder
// must name a schema field; an unknown name is an error rather than
// an empty expansion.
func (t CommandTemplate) Expand(schema ident.Schema, key ident.Key) (engine.Command, error) {
	if err := schema.Conform(key); err != nil {
		return engine.Command{}, err
	}

	cmd := engine.Command{Argv: make([]string, len(t.Argv))}
	for i, arg := range t.Argv {
		expanded, err := substitute(arg, schema, key)
		if err != nil {
			return engine.Command{}, fmt.Errorf("argv[%d]: %w", i, err)
		}
		cmd.Argv[i] = expanded
	}

	dir, err := substitute(t.Dir, schema, key)
	if err != nil {
		return engine.Command{}, fmt.Errorf("dir: %w", err)
	}
	cmd.Dir = dir

	if len(t.Env) > 0 {
		cmd.Env = make([]string, len(t.Env))
		for i, entry := range t.Env {
			expanded, err := substitute(entry, schema, key)
			if err != nil {
				return engine.Command{}, fmt.Errorf("env[%d]: %w", i, err)
			}
			cmd.Env[i] = expanded
		}
	}
	return cmd, nil
}

// check expands the template against a probe key so that bad
// placeholders fail at load time, not at first submission.
func (t CommandTemplate) check(schema ident.Schema) error {
	probe := make(ident.Key, schema.Arity())
	for i := range probe {
		probe[i] = ident.S("")
	}
	_, err := t.Expand(schema, probe)
	return err
}

func substitute(s string, schema ident.Schema, key ident.Key) (string, error) {
	if !strings.Contains(s, placeholderOpen) {
		return s, nil
	}
	var b strings.Builder
	for {
		i := strings.Index(s, placeholderOpen)
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		b.WriteString(s[:i])
		rest := s[i+len(placeholderOpen):]
		j := strings.Index(rest, "}")
		if j < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", s)
		}
		name := rest[:j]
		field, ok := schema.Get(key, name)
		if !ok {
			return "", fmt.Errorf("placeholder ${key.%s}: schema has no field %q", name, name)
		}
		b.WriteString(fieldText(field))
		s = rest[j+1:]
	}
}

func fieldText(f ident.Field) string {
	switch v := f.(type) {
	case ident.FieldString:
		return string(v)
	case ident.FieldInt:
		return strconv.FormatInt(int64(v), 10)
	case ident.FieldBool:
		return strconv.FormatBool(bool(v))
	default:
		return fmt.Sprintf("%v", f)
	}
}
