package footprint

import "github.com/cockroachdb/errors"

var (
	// ErrAccessDenied is returned when a field cannot be read under normal
	// accessibility rules and automatic escalation is off.
	ErrAccessDenied = errors.New("access denied")
	// ErrInsufficientPermission is returned when escalation was attempted but
	// the accessibility override is unavailable or refused.
	ErrInsufficientPermission = errors.New("insufficient permission to override accessibility")
	// ErrRecursionExhausted is returned when the field graph is deeper than
	// the configured limit, which is how cyclic graphs fail.
	ErrRecursionExhausted = errors.New("recursion exhausted")
	// ErrFieldNotFound is returned by a field lookup for an unknown name.
	ErrFieldNotFound = errors.New("field not found")
	// ErrUnsupportedKind is returned for values outside the known classes.
	ErrUnsupportedKind = errors.New("unsupported value kind")
)
