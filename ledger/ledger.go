/*
ledger.go - Atomic reserve/commit/release over per-employee balances

PURPOSE:
  The Ledger is the single concurrency-critical resource of the core.
  Each balance row is keyed by (employee, leave type, year); the ledger
  guarantees that two concurrent reservations on the same key can never
  both observe enough balance and both reserve, overdrawing the row.

PROTOCOL:
  reserve(days)  -> Reservation   (fails: insufficient balance)
  commit(res)    -> Reserved -> Consumed
  release(res)   -> Reserved decremented, Consumed untouched
  Commit and release are single-use: a second settle attempt fails with
  ErrUnknownReservation, logged and surfaced as an integrity error.

SERIALIZATION:
  Two layers, both scoped per key so different keys never contend:
  1. An in-process mutex per key serializes local callers.
  2. An optimistic version on the balance row protects against other
     writers of the same store. Version conflicts are retried a bounded
     number of times, then surfaced as leave.ErrConflict.

LAZY CREATION:
  A balance row is created the first time a key is evaluated, seeded
  with the leave type's annual entitlement from the EntitlementFunc.

SEE ALSO:
  - store.go: Persistence contract
  - approval: The state machine driving this protocol
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// maxAttempts bounds retries of optimistic-concurrency conflicts before
// surfacing leave.ErrConflict.
const maxAttempts = 3

// EntitlementFunc resolves the annual entitlement used to seed a balance
// row on first use. Returns leave.ErrNotFound for unknown leave types.
type EntitlementFunc func(ctx context.Context, key Key) (decimal.Decimal, error)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store       Store
	entitlement EntitlementFunc

	mu    sync.Mutex
	locks map[Key]*sync.Mutex

	now   func() time.Time
	newID func() string
}

func New(store Store, entitlement EntitlementFunc) *Ledger {
	return &Ledger{
		store:       store,
		entitlement: entitlement,
		locks:       make(map[Key]*sync.Mutex),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// lockKey returns the mutex serializing one balance key. Locks are never
// removed; the key space is bounded by employees x types x years.
func (l *Ledger) lockKey(key Key) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// =============================================================================
// RESERVE
// =============================================================================

// Reserve holds days against the key's available balance and returns a
// single-use reservation bound to requestID.
func (l *Ledger) Reserve(ctx context.Context, key Key, days decimal.Decimal, requestID, actorID string) (Reservation, error) {
	if days.IsNegative() {
		return Reservation{}, fmt.Errorf("reserve: negative amount %s", days)
	}

	m := l.lockKey(key)
	m.Lock()
	defer m.Unlock()

	var bal Balance
	for attempt := 0; ; attempt++ {
		var err error
		bal, err = l.loadOrCreate(ctx, key)
		if err != nil {
			return Reservation{}, err
		}

		if days.GreaterThan(bal.Available()) {
			return Reservation{}, &leave.InsufficientBalanceError{
				EmployeeID:  key.EmployeeID,
				LeaveTypeID: key.LeaveTypeID,
				Year:        key.Year,
				Available:   bal.Available(),
				Requested:   days,
			}
		}

		bal.Reserved = bal.Reserved.Add(days)
		bal.Version++
		err = l.store.UpdateBalance(ctx, bal)
		if err == nil {
			break
		}
		if !errors.Is(err, leave.ErrConcurrentModification) {
			return Reservation{}, err
		}
		if attempt+1 >= maxAttempts {
			return Reservation{}, leave.ErrConflict
		}
	}

	res := Reservation{
		ID:        l.newID(),
		Key:       key,
		Days:      days,
		RequestID: requestID,
		State:     ReservationOpen,
		CreatedAt: l.now(),
	}
	if err := l.store.CreateReservation(ctx, res); err != nil {
		// Undo the hold so a failed reservation leaves no trace.
		l.revertReserve(ctx, key, days)
		return Reservation{}, err
	}

	l.journal(ctx, Entry{Key: key, Kind: EntryReserve, Days: days, RequestID: requestID, ActorID: actorID})
	return res, nil
}

// revertReserve best-effort undoes a hold after a failed reservation write.
func (l *Ledger) revertReserve(ctx context.Context, key Key, days decimal.Decimal) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		bal, err := l.store.GetBalance(ctx, key)
		if err != nil {
			break
		}
		bal.Reserved = bal.Reserved.Sub(days)
		bal.Version++
		if err := l.store.UpdateBalance(ctx, bal); err == nil {
			return
		} else if !errors.Is(err, leave.ErrConcurrentModification) {
			break
		}
	}
	log.Printf("ledger: failed to revert hold of %s on %+v", days, key)
}

// =============================================================================
// COMMIT / RELEASE
// =============================================================================

// Commit moves the reservation's days from Reserved to Consumed.
func (l *Ledger) Commit(ctx context.Context, reservationID, actorID string) error {
	return l.settle(ctx, reservationID, actorID, ReservationCommitted)
}

// Release drops the hold without consuming. Used on rejection and
// cancellation.
func (l *Ledger) Release(ctx context.Context, reservationID, actorID string) error {
	return l.settle(ctx, reservationID, actorID, ReservationReleased)
}

func (l *Ledger) settle(ctx context.Context, reservationID, actorID string, outcome ReservationState) error {
	res, err := l.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, leave.ErrNotFound) {
			log.Printf("ledger: settle of unknown reservation %s", reservationID)
			return leave.ErrUnknownReservation
		}
		return err
	}

	m := l.lockKey(res.Key)
	m.Lock()
	defer m.Unlock()

	// SettleReservation is the single-use gate: of two concurrent settle
	// attempts, exactly one passes.
	if err := l.store.SettleReservation(ctx, reservationID, outcome); err != nil {
		if errors.Is(err, leave.ErrUnknownReservation) {
			log.Printf("ledger: double settle attempt on reservation %s", reservationID)
		}
		return err
	}

	for attempt := 0; ; attempt++ {
		bal, err := l.store.GetBalance(ctx, res.Key)
		if err != nil {
			return err
		}
		bal.Reserved = bal.Reserved.Sub(res.Days)
		if outcome == ReservationCommitted {
			bal.Consumed = bal.Consumed.Add(res.Days)
		}
		bal.Version++
		err = l.store.UpdateBalance(ctx, bal)
		if err == nil {
			break
		}
		if !errors.Is(err, leave.ErrConcurrentModification) {
			return err
		}
		if attempt+1 >= maxAttempts {
			return leave.ErrConflict
		}
	}

	kind := EntryCommit
	if outcome == ReservationReleased {
		kind = EntryRelease
	}
	l.journal(ctx, Entry{Key: res.Key, Kind: kind, Days: res.Days, RequestID: res.RequestID, ActorID: actorID})
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Balance returns the current row for a key. A key that has never been
// touched yields a synthesized row (full entitlement, nothing held)
// without persisting anything.
func (l *Ledger) Balance(ctx context.Context, key Key) (Balance, error) {
	bal, err := l.store.GetBalance(ctx, key)
	if err == nil {
		return bal, nil
	}
	if !errors.Is(err, leave.ErrNotFound) {
		return Balance{}, err
	}

	entitlement, err := l.entitlement(ctx, key)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Key: key, Entitlement: entitlement}, nil
}

// Journal returns every ledger mutation recorded for an employee.
func (l *Ledger) Journal(ctx context.Context, employeeID string) ([]Entry, error) {
	return l.store.Journal(ctx, employeeID)
}

// loadOrCreate fetches the balance row, creating it lazily on first use.
func (l *Ledger) loadOrCreate(ctx context.Context, key Key) (Balance, error) {
	bal, err := l.store.GetBalance(ctx, key)
	if err == nil {
		return bal, nil
	}
	if !errors.Is(err, leave.ErrNotFound) {
		return Balance{}, err
	}

	entitlement, err := l.entitlement(ctx, key)
	if err != nil {
		return Balance{}, err
	}
	bal = Balance{Key: key, Entitlement: entitlement, Version: 1}
	if err := l.store.CreateBalance(ctx, bal); err != nil {
		if errors.Is(err, leave.ErrConcurrentModification) {
			// Lost a creation race with another writer; reload.
			return l.store.GetBalance(ctx, key)
		}
		return Balance{}, err
	}
	return bal, nil
}

// journal appends an entry, filling in id and timestamp. Journal failures
// are logged, not surfaced: the balance mutation has already committed and
// the journal is an audit trail, not a source of truth here.
func (l *Ledger) journal(ctx context.Context, e Entry) {
	e.ID = l.newID()
	e.At = l.now()
	if err := l.store.AppendJournal(ctx, e); err != nil {
		log.Printf("ledger: journal append failed for %s/%s: %v", e.Kind, e.RequestID, err)
	}
}
