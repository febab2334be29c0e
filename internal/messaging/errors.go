package messaging

import "errors"

// Error classes surfaced by the service. Callers classify with errors.Is;
// anything outside these three is a store failure and maps to a generic 500.
var (
	ErrValidation = errors.New("invalid input")
	ErrForbidden  = errors.New("not allowed")
	ErrNotFound   = errors.New("not found")
)
