package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func days(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

func fixedEntitlement(n int) ledger.EntitlementFunc {
	return func(context.Context, ledger.Key) (decimal.Decimal, error) {
		return days(n), nil
	}
}

func newTestLedger(entitlementDays int) (*ledger.Ledger, *memory.LedgerStore) {
	store := memory.NewLedgerStore()
	return ledger.New(store, fixedEntitlement(entitlementDays)), store
}

func key(employee string) ledger.Key {
	return ledger.Key{EmployeeID: employee, LeaveTypeID: "annual", Year: 2025}
}

func requireBalance(t *testing.T, l *ledger.Ledger, k ledger.Key, entitlement, reserved, consumed int) {
	t.Helper()
	bal, err := l.Balance(context.Background(), k)
	require.NoError(t, err)
	assert.True(t, bal.Entitlement.Equal(days(entitlement)), "entitlement: got %s", bal.Entitlement)
	assert.True(t, bal.Reserved.Equal(days(reserved)), "reserved: got %s", bal.Reserved)
	assert.True(t, bal.Consumed.Equal(days(consumed)), "consumed: got %s", bal.Consumed)
	assert.True(t, bal.Available().Equal(days(entitlement-reserved-consumed)), "available: got %s", bal.Available())
}

// =============================================================================
// RESERVE
// =============================================================================

func TestReserve_HoldsBalance(t *testing.T) {
	// GIVEN: Entitlement of 20 days, untouched
	// WHEN: Reserving 5 days
	// THEN: reserved=5, available=15
	l, _ := newTestLedger(20)
	ctx := context.Background()

	res, err := l.Reserve(ctx, key("emp-1"), days(5), "req-1", "emp-1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, ledger.ReservationOpen, res.State)

	requireBalance(t, l, key("emp-1"), 20, 5, 0)
}

func TestReserve_InsufficientBalance_LeavesLedgerUntouched(t *testing.T) {
	// GIVEN: 20 days entitlement with 18 already reserved
	// WHEN: Reserving 5 more
	// THEN: InsufficientBalance, balance unchanged
	l, _ := newTestLedger(20)
	ctx := context.Background()

	_, err := l.Reserve(ctx, key("emp-1"), days(18), "req-1", "emp-1")
	require.NoError(t, err)

	_, err = l.Reserve(ctx, key("emp-1"), days(5), "req-2", "emp-1")
	require.ErrorIs(t, err, leave.ErrInsufficientBalance)

	var ib *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.True(t, ib.Available.Equal(days(2)))
	assert.True(t, ib.Requested.Equal(days(5)))

	requireBalance(t, l, key("emp-1"), 20, 18, 0)
}

func TestReserve_ZeroDays(t *testing.T) {
	l, _ := newTestLedger(20)
	res, err := l.Reserve(context.Background(), key("emp-1"), days(0), "req-1", "emp-1")
	require.NoError(t, err)
	assert.True(t, res.Days.IsZero())
	requireBalance(t, l, key("emp-1"), 20, 0, 0)
}

func TestReserve_UnknownLeaveType(t *testing.T) {
	store := memory.NewLedgerStore()
	l := ledger.New(store, func(context.Context, ledger.Key) (decimal.Decimal, error) {
		return decimal.Zero, leave.ErrNotFound
	})

	_, err := l.Reserve(context.Background(), key("emp-1"), days(1), "req-1", "emp-1")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// COMMIT / RELEASE
// =============================================================================

func TestCommit_MovesReservedToConsumed(t *testing.T) {
	l, _ := newTestLedger(20)
	ctx := context.Background()

	res, err := l.Reserve(ctx, key("emp-1"), days(5), "req-1", "emp-1")
	require.NoError(t, err)

	require.NoError(t, l.Commit(ctx, res.ID, "hr-1"))
	requireBalance(t, l, key("emp-1"), 20, 0, 5)
}

func TestRelease_RestoresAvailable(t *testing.T) {
	l, _ := newTestLedger(20)
	ctx := context.Background()

	res, err := l.Reserve(ctx, key("emp-1"), days(5), "req-1", "emp-1")
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, res.ID, "hr-1"))
	requireBalance(t, l, key("emp-1"), 20, 0, 0)
}

func TestSettle_IsSingleUse(t *testing.T) {
	// GIVEN: A committed reservation
	// WHEN: Committing or releasing it again
	// THEN: UnknownReservation, balance untouched
	l, _ := newTestLedger(20)
	ctx := context.Background()

	res, err := l.Reserve(ctx, key("emp-1"), days(5), "req-1", "emp-1")
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, res.ID, "hr-1"))

	assert.ErrorIs(t, l.Commit(ctx, res.ID, "hr-1"), leave.ErrUnknownReservation)
	assert.ErrorIs(t, l.Release(ctx, res.ID, "hr-1"), leave.ErrUnknownReservation)
	requireBalance(t, l, key("emp-1"), 20, 0, 5)
}

func TestSettle_UnknownHandle(t *testing.T) {
	l, _ := newTestLedger(20)
	err := l.Commit(context.Background(), "no-such-reservation", "hr-1")
	assert.ErrorIs(t, err, leave.ErrUnknownReservation)
}

// =============================================================================
// INVARIANT
// =============================================================================

func TestInvariant_HeldAfterEveryOperation(t *testing.T) {
	// GIVEN: A mixed sequence of reserve/commit/release on one key
	// THEN: reserved + consumed <= entitlement after every call
	l, _ := newTestLedger(10)
	ctx := context.Background()
	k := key("emp-1")

	check := func() {
		bal, err := l.Balance(ctx, k)
		require.NoError(t, err)
		sum := bal.Reserved.Add(bal.Consumed)
		assert.True(t, sum.LessThanOrEqual(bal.Entitlement),
			"reserved %s + consumed %s > entitlement %s", bal.Reserved, bal.Consumed, bal.Entitlement)
	}

	r1, err := l.Reserve(ctx, k, days(4), "req-1", "emp-1")
	require.NoError(t, err)
	check()
	r2, err := l.Reserve(ctx, k, days(3), "req-2", "emp-1")
	require.NoError(t, err)
	check()
	require.NoError(t, l.Commit(ctx, r1.ID, "hr-1"))
	check()
	require.NoError(t, l.Release(ctx, r2.ID, "hod-1"))
	check()
	r3, err := l.Reserve(ctx, k, days(6), "req-3", "emp-1")
	require.NoError(t, err)
	check()
	require.NoError(t, l.Commit(ctx, r3.ID, "hr-1"))
	check()

	requireBalance(t, l, k, 10, 0, 10)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentReserves_NeverOverdraw(t *testing.T) {
	// GIVEN: 10 days available, 25 concurrent 1-day reserve attempts
	// THEN: exactly 10 succeed, the rest fail with InsufficientBalance
	l, _ := newTestLedger(10)
	ctx := context.Background()
	k := key("emp-1")

	const attempts = 25
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Reserve(ctx, k, days(1), "req", "emp-1")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, insufficient := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, leave.ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, attempts-10, insufficient)
	requireBalance(t, l, k, 10, 10, 0)
}

func TestConcurrentSettle_ExactlyOneWinner(t *testing.T) {
	// GIVEN: One open reservation
	// WHEN: Concurrent commit and release race on it
	// THEN: Exactly one settles; the other gets UnknownReservation
	l, _ := newTestLedger(20)
	ctx := context.Background()

	res, err := l.Reserve(ctx, key("emp-1"), days(5), "req-1", "emp-1")
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); errs <- l.Commit(ctx, res.ID, "hr-1") }()
	go func() { defer wg.Done(); errs <- l.Release(ctx, res.ID, "hr-1") }()
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		if err == nil {
			wins++
		} else if assert.ErrorIs(t, err, leave.ErrUnknownReservation) {
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	// Balance reflects only the winner's effect.
	bal, err := l.Balance(ctx, key("emp-1"))
	require.NoError(t, err)
	assert.True(t, bal.Reserved.IsZero())
	assert.True(t, bal.Consumed.IsZero() || bal.Consumed.Equal(days(5)))
}

func TestDifferentKeys_Independent(t *testing.T) {
	l, _ := newTestLedger(10)
	ctx := context.Background()

	_, err := l.Reserve(ctx, key("emp-1"), days(10), "req-1", "emp-1")
	require.NoError(t, err)

	// Exhausting emp-1's balance does not affect emp-2.
	_, err = l.Reserve(ctx, key("emp-2"), days(10), "req-2", "emp-2")
	require.NoError(t, err)

	requireBalance(t, l, key("emp-1"), 10, 10, 0)
	requireBalance(t, l, key("emp-2"), 10, 10, 0)
}

// =============================================================================
// JOURNAL
// =============================================================================

func TestJournal_RecordsEveryMutationInOrder(t *testing.T) {
	l, _ := newTestLedger(20)
	ctx := context.Background()

	r1, err := l.Reserve(ctx, key("emp-1"), days(5), "req-1", "emp-1")
	require.NoError(t, err)
	r2, err := l.Reserve(ctx, key("emp-1"), days(3), "req-2", "emp-1")
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, r1.ID, "hr-1"))
	require.NoError(t, l.Release(ctx, r2.ID, "hod-1"))

	entries, err := l.Journal(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, ledger.EntryReserve, entries[0].Kind)
	assert.Equal(t, ledger.EntryReserve, entries[1].Kind)
	assert.Equal(t, ledger.EntryCommit, entries[2].Kind)
	assert.Equal(t, ledger.EntryRelease, entries[3].Kind)
	assert.Equal(t, "req-1", entries[2].RequestID)
	assert.Equal(t, "hod-1", entries[3].ActorID)
}
