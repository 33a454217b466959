package board

import "fmt"

// ValidationError rejects malformed input: unknown enum values, missing
// required fields, cross-project references. Maps to HTTP 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError rejects an operation that contradicts current state, such as
// a hierarchy cycle or a duplicate link. Maps to HTTP 409.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// GateBlockedError rejects a transition into done while reviews are still
// open. The counts name what is blocking. Maps to HTTP 409.
type GateBlockedError struct {
	Pending          int
	ChangesRequested int
}

func (e *GateBlockedError) Error() string {
	return fmt.Sprintf("cannot move to done: %d pending review(s), %d review(s) with changes requested",
		e.Pending, e.ChangesRequested)
}
