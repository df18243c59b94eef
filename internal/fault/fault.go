// Package fault defines the typed error taxonomy shared by the store and
// the lifecycle engine. Every recoverable failure carries a Kind so callers
// (the HTTP layer in particular) can discriminate without string matching.
package fault

import (
	"errors"
	"fmt"
)

// Kind discriminates the failure classes the core can produce.
type Kind string

const (
	// KindNotFound: the referenced entity id does not exist.
	KindNotFound Kind = "not_found"

	// KindInvalidTransition: the state machine rejected the requested move.
	KindInvalidTransition Kind = "invalid_transition"

	// KindValidation: caller-supplied data violates a field constraint.
	KindValidation Kind = "validation"

	// KindConflict: an entity with the same id already exists.
	KindConflict Kind = "conflict"
)

// Error is a typed, recoverable failure. It never indicates a process-fatal
// condition; callers are expected to report it and carry on.
type Error struct {
	Kind   Kind
	Entity string // "agent", "task", "message", ...
	Msg    string
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Msg)
	}
	return e.Msg
}

// NotFound reports a missing entity.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Msg: fmt.Sprintf("%s not found", id)}
}

// InvalidTransition reports a state-machine rejection.
func InvalidTransition(entity, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports bad caller-supplied data.
func Validation(entity, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

// Conflict reports a duplicate id.
func Conflict(entity, id string) *Error {
	return &Error{Kind: KindConflict, Entity: entity, Msg: fmt.Sprintf("%s already exists", id)}
}

// KindOf extracts the Kind from err, unwrapping as needed.
// Returns "" when err carries no fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
