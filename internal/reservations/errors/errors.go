package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("reservation not found")

	ErrAlreadyReserved = errors.New("user already holds an open reservation")

	ErrInvalidTransition = errors.New("invalid reservation status transition")

	ErrInvalidCode = errors.New("invalid reservation code")

	// ErrTransient marks storage failures that are safe to retry.
	ErrTransient = errors.New("transient storage failure")

	ErrDuplicateID = errors.New("reservation id already exists")
)

// TransitionError carries the actual status found when a compare-and-set on
// the reservation status lost.
type TransitionError struct {
	ID     string
	Actual string
	Target string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("reservation %s: cannot move from %s to %s", e.ID, e.Actual, e.Target)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
