/*
store.go - Persistence interface for balances, reservations, and the journal

PURPOSE:
  Defines what the ledger needs from the storage collaborator: uniquely
  keyed balance rows with atomic conditional updates, single-use
  reservation settling, and an append-only journal.

CONCURRENCY CONTRACT:
  - UpdateBalance is a compare-and-swap on Balance.Version. A mismatch
    returns leave.ErrConcurrentModification; the ledger retries a bounded
    number of times before surfacing leave.ErrConflict.
  - SettleReservation succeeds only while the reservation is still open,
    so two settle attempts yield exactly one winner.
  - The journal is append-only. No Update, no Delete.

IMPLEMENTATIONS:
  - store/memory: In-memory, for tests and development
  - store/sqlite: SQLite with WAL and version columns
*/
package ledger

import "context"

// Store persists balances, reservations, and journal entries.
type Store interface {
	// GetBalance returns the balance row, or leave.ErrNotFound.
	GetBalance(ctx context.Context, key Key) (Balance, error)

	// CreateBalance inserts a new row with Version 1. Returns
	// leave.ErrConcurrentModification if the key already exists.
	CreateBalance(ctx context.Context, b Balance) error

	// UpdateBalance replaces the row if the stored version matches
	// b.Version-1 (b carries the incremented version). Returns
	// leave.ErrConcurrentModification on mismatch.
	UpdateBalance(ctx context.Context, b Balance) error

	// CreateReservation persists a new open reservation.
	CreateReservation(ctx context.Context, r Reservation) error

	// GetReservation returns a reservation, or leave.ErrNotFound.
	GetReservation(ctx context.Context, id string) (Reservation, error)

	// SettleReservation moves an open reservation to outcome. Returns
	// leave.ErrUnknownReservation if the reservation is missing or
	// already settled.
	SettleReservation(ctx context.Context, id string, outcome ReservationState) error

	// AppendJournal records one ledger mutation. Append-only.
	AppendJournal(ctx context.Context, e Entry) error

	// Journal returns all entries for an employee in append order.
	Journal(ctx context.Context, employeeID string) ([]Entry, error)
}
