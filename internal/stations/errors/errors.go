package errors

import "errors"

var (
	ErrNotFound = errors.New("station not found")

	// ErrCapacityViolation is returned when an availability change would
	// leave a station below zero or above its capacity.
	ErrCapacityViolation = errors.New("station availability out of bounds")

	ErrDuplicateID = errors.New("duplicate station id")
)
