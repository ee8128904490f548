/*
errors.go - Error taxonomy for the leave management core

PURPOSE:
  Centralizes the sentinel errors shared across the core. Typed results,
  never unstructured failures: callers branch with errors.Is/errors.As.

CATEGORIES:
  1. Client errors   - invalid input or state (caller's fault)
  2. Integrity errors - double-settle attempts (programming errors,
     logged and surfaced, never silently ignored)
  3. Transient errors - storage conflicts, safe to retry

Range errors (end before start) are produced where they originate:
calendar.ErrInvalidRange.

USAGE:
  if errors.Is(err, leave.ErrInsufficientBalance) { ... }

  var ib *leave.InsufficientBalanceError
  if errors.As(err, &ib) { ... ib.Available ... }
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a reservation would overdraw
	// the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnknownReservation is returned when committing or releasing a
	// reservation handle that is stale or already settled. Commit and
	// release are single-use; hitting this indicates an integrity bug.
	ErrUnknownReservation = errors.New("unknown or already settled reservation")

	// ErrInvalidTransition is returned when a transition is attempted from
	// a non-matching request state, including the loser of a concurrent
	// double-decide.
	ErrInvalidTransition = errors.New("invalid transition for current status")

	// ErrUnauthorized is returned when the actor lacks the role or
	// department scope a transition requires.
	ErrUnauthorized = errors.New("actor not authorized for this transition")

	// ErrNotFound is returned for unknown requests, employees, or leave types.
	ErrNotFound = errors.New("not found")

	// ErrConflict is surfaced after bounded internal retries of transient
	// storage conflicts. The whole operation is safe to retry.
	ErrConflict = errors.New("conflict: concurrent update, retry the operation")

	// ErrConcurrentModification signals a single optimistic-concurrency
	// failure inside a store. Retried internally; callers see ErrConflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError details a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID  string
	LeaveTypeID string
	Year        int
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s/%d: available %s, requested %s",
		e.EmployeeID, e.LeaveTypeID, e.Year, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidTransitionError details a state mismatch.
type InvalidTransitionError struct {
	RequestID string
	From      Status
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot %s from status %s", e.RequestID, e.Attempted, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// UnauthorizedError details a role/scope mismatch.
type UnauthorizedError struct {
	ActorID  string
	Role     Role
	Required string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %s (%s) is not authorized: requires %s", e.ActorID, e.Role, e.Required)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error is a missing-entity lookup.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError reports whether the error is due to invalid client input
// or state, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, calendar.ErrInvalidRange)
}

// IsRetryable reports whether retrying the whole operation may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrConcurrentModification)
}
