package services

import "fmt"

// Error taxonomy for booking and payout operations. Route handlers translate
// these to HTTP statuses; everything else is treated as an internal error.

// ValidationError marks malformed or out-of-range input. Not retryable.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError marks a request that collides with existing state, such as a
// date overlap or a guest count above capacity. The caller must change input.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError marks a missing listing, booking or user.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// InvalidStateError marks an operation that is illegal for the record's
// current lifecycle state. Idempotent operations treat "already done" as
// success instead of returning this.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

// PayoutConfigError marks an incomplete host payout profile. Surfaced to the
// host, never retried automatically.
type PayoutConfigError struct {
	Message string
}

func (e *PayoutConfigError) Error() string { return e.Message }

// PayoutProviderError marks a transient provider failure (network error,
// rejection, timeout). The booking's payout is left in a retryable failed
// state and the watcher picks it up on a later tick.
type PayoutProviderError struct {
	Reason string
	Err    error
}

func (e *PayoutProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payout provider: %s: %v", e.Reason, e.Err)
	}
	return "payout provider: " + e.Reason
}

func (e *PayoutProviderError) Unwrap() error { return e.Err }
