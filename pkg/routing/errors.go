package routing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTable is returned when a table cannot be parsed.
	ErrInvalidTable = errors.New("invalid routing table")

	// ErrStaticCore is returned when a Router is given a core that does
	// not accept per-request targets.
	ErrStaticCore = errors.New("router core must enable dynamic targets")
)

// RuleError reports a problem with one rule of a table.
type RuleError struct {
	// Rule is the match pattern of the rule.
	Rule string

	// Field is the offending field, e.g. "pathRewrite".
	Field string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("rule %q: %s: %v", e.Rule, e.Field, e.Err)
}

// Is implements error matching for errors.Is().
func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidTable
}

// Unwrap returns the underlying cause.
func (e *RuleError) Unwrap() error {
	return e.Err
}
