package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KEYS AND BALANCES
// =============================================================================

// Key identifies one balance row. All ledger operations on the same key
// are serialized; operations on different keys never block each other.
type Key struct {
	EmployeeID  string
	LeaveTypeID string
	Year        int
}

// Balance is the per-key accounting row.
//
// INVARIANT: Reserved + Consumed <= Entitlement at all times.
// Mutated exclusively through the Ledger's reserve/commit/release.
type Balance struct {
	Key         Key
	Entitlement decimal.Decimal
	Reserved    decimal.Decimal
	Consumed    decimal.Decimal

	// Version supports optimistic concurrency in the store.
	Version int64
}

// Available returns Entitlement - Reserved - Consumed. Never negative
// while the invariant holds.
func (b Balance) Available() decimal.Decimal {
	return b.Entitlement.Sub(b.Reserved).Sub(b.Consumed)
}

// =============================================================================
// RESERVATIONS
// =============================================================================

// ReservationState tracks the single-use settle of a reservation.
type ReservationState string

const (
	ReservationOpen      ReservationState = "open"
	ReservationCommitted ReservationState = "committed"
	ReservationReleased  ReservationState = "released"
)

// Reservation is the handle returned by Reserve, bound to one request.
// Commit and Release consume it exactly once.
type Reservation struct {
	ID        string
	Key       Key
	Days      decimal.Decimal
	RequestID string
	State     ReservationState
	CreatedAt time.Time
	SettledAt *time.Time
}

// =============================================================================
// JOURNAL - Append-only record of every ledger mutation
// =============================================================================

type EntryKind string

const (
	EntryReserve EntryKind = "reserve"
	EntryCommit  EntryKind = "commit"
	EntryRelease EntryKind = "release"
)

// Entry is one immutable journal line. The journal is append-only: no
// update, no delete; corrections happen through further entries.
type Entry struct {
	ID        string
	Key       Key
	Kind      EntryKind
	Days      decimal.Decimal
	RequestID string
	ActorID   string
	At        time.Time
}
