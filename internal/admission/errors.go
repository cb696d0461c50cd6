package admission

import (
	"errors"
	"fmt"
)

// IntegrityError reports a work list the controller refuses to act on:
// a catalog that enumerated duplicate identities, or an identity that
// does not conform to the configured schema.
//
// Integrity failures abort the whole batch before any side effect, so a
// bad catalog can never cause a partial submission.
type IntegrityError struct {
	Group  string // group label the controller is bound to
	Reason string // human-readable description of the violation
	Canon  string // canonical form of the offending identity, when known
}

func (e *IntegrityError) Error() string {
	if e.Canon != "" {
		return fmt.Sprintf("catalog integrity: %s (group=%s, identity=%s)", e.Reason, e.Group, e.Canon)
	}
	return fmt.Sprintf("catalog integrity: %s (group=%s)", e.Reason, e.Group)
}

// IsIntegrityError returns true if the error is an IntegrityError.
// Uses errors.As to handle wrapped errors.
func IsIntegrityError(err error) bool {
	var integrityErr *IntegrityError
	return errors.As(err, &integrityErr)
}

// ConfigError reports an invalid controller configuration: an empty
// group, a non-positive concurrency ceiling, a bad schema, or a missing
// collaborator. Raised at construction time, before a controller exists.
type ConfigError struct {
	Field  string // configuration field that failed validation
	Reason string // why it was rejected
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// IsConfigError returns true if the error is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}
