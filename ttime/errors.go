package ttime

import "errors"

// Error kinds the core raises (spec.md §7). Propagation policy: malformed
// query, invariant violation, invalid op and too-large abort the current
// operation with no mutation performed; duplicate-key is propagated after
// step 2 may already have committed; cancelled reports a partial count.
var (
	ErrMalformedQuery     = errors.New("malformed query")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrInvalidOp          = errors.New("invalid operation")
	ErrTooLarge           = errors.New("document too large")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrCancelled          = errors.New("cancelled")
)
