package models

import "errors"

// Sentinel errors for the donation lifecycle. Handlers map these onto HTTP
// status codes; repositories return them from conditional updates so callers
// can tell a lost race from a hard failure.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidAssignment = errors.New("actor does not hold this assignment")
	ErrAlreadyAssigned   = errors.New("donation already assigned")
	ErrCapacityExhausted = errors.New("no eligible organization with remaining capacity")
)
