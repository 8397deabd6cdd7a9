package errors

import "errors"

var (
	ErrNoAvailability = errors.New("no units available at station")

	ErrStationNotFound = errors.New("station not found")

	ErrClaimNotFound = errors.New("claim not found")

	// ErrDuplicateClaim is returned when a claim id is reused. Claim ids are
	// reservation ids, so this means the same reservation claimed twice.
	ErrDuplicateClaim = errors.New("claim already exists")
)
