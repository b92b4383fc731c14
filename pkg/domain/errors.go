package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
// The caller must start a new session.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned by stores when creating a session whose ID is taken.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionTerminated is returned when input is submitted to a session in an absorbing state.
var ErrSessionTerminated = errors.New("session terminated")

// ErrValidationFailed marks input that did not satisfy the current state's requirements.
// It never escapes Continue: it becomes a stay-in-state instruction.
var ErrValidationFailed = errors.New("validation failed")

// ErrUnknownVariant is returned when starting a workflow that is not registered.
var ErrUnknownVariant = errors.New("unknown workflow variant")

// ErrInvariant is the parent of every internal invariant breach.
// Errors matching it indicate a programming error, not a caller mistake.
var ErrInvariant = errors.New("engine invariant violated")

// UnknownStateError is returned when the transition table has no entry for a session's state.
type UnknownStateError struct {
	Variant Variant
	State   StateID
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state %q for variant %q", e.State, e.Variant)
}

// Is allows errors.Is(err, ErrInvariant).
func (e *UnknownStateError) Is(target error) bool {
	return target == ErrInvariant
}

// InvalidTransitionError is returned when a transition targets a state that is not a declared edge.
type InvalidTransitionError struct {
	Variant Variant
	From    StateID
	To      StateID
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("undeclared transition %s -> %s for variant %q", e.From, e.To, e.Variant)
}

// Is allows errors.Is(err, ErrInvariant).
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvariant
}
