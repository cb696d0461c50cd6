package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sluice/internal/ident"
)

// LoadError is a manifest loading error with CUE position info when
// the source location is known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a plan from a CUE file, or from every CUE file under a
// directory unified into one value. The returned plan is fully
// validated: submitting it can still fail, but not because the
// manifest was malformed.
func Load(path string) (*Plan, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Field: "plan", Message: fmt.Sprintf("plan not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Field: "plan", Message: fmt.Sprintf("error accessing plan: %v", err)}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Field: "plan", Message: fmt.Sprintf("resolving plan path: %v", err)}
	}

	var dir string
	var files []string
	if info.IsDir() {
		dir = abs
		files, err = findCUEFiles(abs)
		if err != nil {
			return nil, &LoadError{Field: "plan", Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Field: "plan", Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	} else {
		dir = filepath.Dir(abs)
		files = []string{abs}
	}

	// Explicit file arguments load as a single instance, so a plan
	// split across files in a directory unifies into one value.
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances(files, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Field: "plan", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	planVal := value.LookupPath(cue.ParsePath("plan"))
	if !planVal.Exists() {
		return nil, &LoadError{Field: "plan", Message: "manifest has no plan", Pos: value.Pos()}
	}
	return compilePlan(planVal)
}

// compilePlan extracts a Plan from a CUE value.
func compilePlan(v cue.Value) (*Plan, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	plan := &Plan{}

	// Parse group (required)
	groupVal := v.LookupPath(cue.ParsePath("group"))
	if !groupVal.Exists() {
		return nil, &LoadError{Field: "group", Message: "group is required", Pos: v.Pos()}
	}
	group, err := groupVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if group == "" {
		return nil, &LoadError{Field: "group", Message: "group must not be empty", Pos: groupVal.Pos()}
	}
	plan.Group = group

	// Parse max_active (required, positive)
	maxVal := v.LookupPath(cue.ParsePath("max_active"))
	if !maxVal.Exists() {
		return nil, &LoadError{Field: "max_active", Message: "max_active is required", Pos: v.Pos()}
	}
	maxActive, err := maxVal.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if maxActive <= 0 {
		return nil, &LoadError{Field: "max_active", Message: fmt.Sprintf("must be positive, got %d", maxActive), Pos: maxVal.Pos()}
	}
	plan.MaxActive = int(maxActive)

	// Parse schema (required, non-empty list of field names)
	schemaVal := v.LookupPath(cue.ParsePath("schema"))
	if !schemaVal.Exists() {
		return nil, &LoadError{Field: "schema", Message: "schema is required", Pos: v.Pos()}
	}
	names, err := parseStrings(schemaVal)
	if err != nil {
		return nil, err
	}
	plan.Schema = ident.NewSchema(names...)
	if err := plan.Schema.Validate(); err != nil {
		return nil, &LoadError{Field: "schema", Message: err.Error(), Pos: schemaVal.Pos()}
	}

	// Parse command (required)
	cmdVal := v.LookupPath(cue.ParsePath("command"))
	if !cmdVal.Exists() {
		return nil, &LoadError{Field: "command", Message: "command is required", Pos: v.Pos()}
	}
	plan.Command, err = compileCommand(cmdVal)
	if err != nil {
		return nil, err
	}
	if err := plan.Command.check(plan.Schema); err != nil {
		return nil, &LoadError{Field: "command", Message: err.Error(), Pos: cmdVal.Pos()}
	}

	// Parse units (optional)
	unitsVal := v.LookupPath(cue.ParsePath("units"))
	if unitsVal.Exists() {
		plan.Units, err = parseUnits(unitsVal, plan.Schema)
		if err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func compileCommand(v cue.Value) (CommandTemplate, error) {
	var tmpl CommandTemplate

	argvVal := v.LookupPath(cue.ParsePath("argv"))
	if !argvVal.Exists() {
		return tmpl, &LoadError{Field: "command.argv", Message: "argv is required", Pos: v.Pos()}
	}
	argv, err := parseStrings(argvVal)
	if err != nil {
		return tmpl, err
	}
	if len(argv) == 0 {
		return tmpl, &LoadError{Field: "command.argv", Message: "argv must not be empty", Pos: argvVal.Pos()}
	}
	tmpl.Argv = argv

	dirVal := v.LookupPath(cue.ParsePath("dir"))
	if dirVal.Exists() {
		dir, err := dirVal.String()
		if err != nil {
			return tmpl, formatCUEError(err)
		}
		tmpl.Dir = dir
	}

	envVal := v.LookupPath(cue.ParsePath("env"))
	if envVal.Exists() {
		env, err := parseStrings(envVal)
		if err != nil {
			return tmpl, err
		}
		tmpl.Env = env
	}

	return tmpl, nil
}

// parseUnits extracts identity keys and checks each against the
// schema. Duplicates are not rejected here; the controller treats
// them as a catalog integrity failure before any side effect.
func parseUnits(v cue.Value, schema ident.Schema) ([]ident.Key, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var units []ident.Key
	for iter.Next() {
		key, err := parseKey(iter.Value(), schema)
		if err != nil {
			return nil, err
		}
		units = append(units, key)
	}
	return units, nil
}

func parseKey(v cue.Value, schema ident.Schema) (ident.Key, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var key ident.Key
	for iter.Next() {
		field, err := parseField(iter.Value())
		if err != nil {
			return nil, err
		}
		key = append(key, field)
	}

	if err := schema.Conform(key); err != nil {
		return nil, &LoadError{Field: "units", Message: err.Error(), Pos: v.Pos()}
	}
	return key, nil
}

func parseField(v cue.Value) (ident.Field, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ident.S(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ident.I(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ident.B(b), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &LoadError{
			Field:   "units",
			Message: "float fields are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &LoadError{
			Field:   "units",
			Message: fmt.Sprintf("unsupported field kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

func parseStrings(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// formatCUEError extracts position info from a CUE error when it has
// any.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
