/*
service.go - Two-stage approval state machine for leave requests

PURPOSE:
  Owns the lifecycle of a leave request:

    DRAFT_SUBMITTED -> HOD_REVIEW -> {HR_REVIEW, HOD_REJECTED}
    HR_REVIEW       -> {FINAL_APPROVED, HR_REJECTED}
    CANCELLED reachable from DRAFT_SUBMITTED and HOD_REVIEW only.

  HOD_REJECTED, HR_REJECTED, FINAL_APPROVED, and CANCELLED are terminal
  and never reopened.

TRANSITION DISCIPLINE:
  Every transition runs the same three phases, in order:
  1. Validate - load the request, check status and actor authorization.
     No side effects; failures leave everything untouched.
  2. Commit   - compare-and-swap the new status into the request store.
     This is the winner-picking step: of two concurrent decisions,
     exactly one CAS succeeds and the loser gets ErrInvalidTransition.
  3. Settle   - perform the ledger mutation (commit/release) bound to
     the transition, then emit the domain event. The reservation's
     single-use settle is a second guard: a transition that somehow
     reaches this phase twice fails loudly with ErrUnknownReservation.

AUTHORIZATION:
  Checked per transition, against the asserted actor:
    submit      requester (any role)
    hod_*       RoleHOD, same department as the employee
    hr_*        RoleHR
    cancel      the requester, before HR has acted

SEE ALSO:
  - store.go: Collaborator interfaces
  - ledger: Reserve/commit/release protocol
*/
package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// ErrZeroDayRequest is returned at submission when the range contains no
// chargeable day and the policy does not allow zero-day requests.
var ErrZeroDayRequest = errors.New("request covers no chargeable working day")

// Policy holds the boundary policy knobs of the state machine.
type Policy struct {
	// AllowZeroDay accepts submissions whose chargeable day count is zero
	// (e.g. a single holiday date) with zero balance cost.
	AllowZeroDay bool
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the approval state machine. All fields are required except
// Policy.
type Service struct {
	Requests  RequestStore
	Employees EmployeeDirectory
	Types     TypeRegistry
	Ledger    *ledger.Ledger
	Calendar  *calendar.Calendar
	Events    leave.EventSink
	Policy    Policy
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates a new request, computes its chargeable day count,
// reserves the balance, and persists the request in HOD review.
func (s *Service) Submit(ctx context.Context, employeeID, leaveTypeID string, start, end calendar.Date, reason string) (*leave.LeaveRequest, error) {
	if _, err := s.Employees.Employee(ctx, employeeID); err != nil {
		return nil, err
	}
	if _, err := s.Types.LeaveType(ctx, leaveTypeID); err != nil {
		return nil, err
	}

	days, err := s.Calendar.ChargeableDays(start, end)
	if err != nil {
		return nil, err
	}
	if days == 0 && !s.Policy.AllowZeroDay {
		return nil, ErrZeroDayRequest
	}

	now := time.Now()
	req := &leave.LeaveRequest{
		ID:          uuid.NewString(),
		EmployeeID:  employeeID,
		LeaveTypeID: leaveTypeID,
		StartDate:   start,
		EndDate:     end,
		WorkingDays: decimal.NewFromInt(int64(days)),
		Status:      leave.StatusDraftSubmitted,
		Reason:      reason,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	key := ledger.Key{EmployeeID: employeeID, LeaveTypeID: leaveTypeID, Year: req.BalanceYear()}
	res, err := s.Ledger.Reserve(ctx, key, req.WorkingDays, req.ID, employeeID)
	if err != nil {
		return nil, err
	}
	req.ReservationID = res.ID
	req.Status = leave.StatusHODReview

	if err := s.Requests.Create(ctx, req); err != nil {
		// Undo the hold so a failed submission has no balance effect.
		if rerr := s.Ledger.Release(ctx, res.ID, employeeID); rerr != nil {
			log.Printf("approval: failed to release reservation %s after create failure: %v", res.ID, rerr)
		}
		return nil, err
	}
	return req, nil
}

// =============================================================================
// DECIDE - role-dispatched to the HOD or HR transition
// =============================================================================

// Decide records an approval-chain verdict. The transition is chosen from
// the request's current status: HOD review accepts department-head
// verdicts, HR review accepts HR verdicts.
func (s *Service) Decide(ctx context.Context, requestID string, actor leave.Actor, verdict leave.Verdict, comment string) (*leave.LeaveRequest, error) {
	req, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case leave.StatusHODReview:
		return s.decideHOD(ctx, req, actor, verdict, comment)
	case leave.StatusHRReview:
		return s.decideHR(ctx, req, actor, verdict, comment)
	default:
		return nil, &leave.InvalidTransitionError{RequestID: req.ID, From: req.Status, Attempted: "decide"}
	}
}

func (s *Service) decideHOD(ctx context.Context, req *leave.LeaveRequest, actor leave.Actor, verdict leave.Verdict, comment string) (*leave.LeaveRequest, error) {
	if actor.Role != leave.RoleHOD {
		return nil, &leave.UnauthorizedError{ActorID: actor.ID, Role: actor.Role, Required: "role HOD"}
	}
	employee, err := s.Employees.Employee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if actor.DepartmentID != employee.DepartmentID {
		return nil, &leave.UnauthorizedError{
			ActorID: actor.ID, Role: actor.Role,
			Required: fmt.Sprintf("department %s", employee.DepartmentID),
		}
	}

	next := req.Clone()
	next.HODDecision = &leave.Decision{ActorID: actor.ID, Verdict: verdict, Comment: comment, DecidedAt: time.Now()}

	if verdict == leave.VerdictApprove {
		next.Status = leave.StatusHRReview
		if err := s.commit(ctx, next, leave.StatusHODReview); err != nil {
			return nil, err
		}
		// No balance change: the reservation stays held for HR.
		return next, nil
	}

	next.Status = leave.StatusHODRejected
	if err := s.commit(ctx, next, leave.StatusHODReview); err != nil {
		return nil, err
	}
	if err := s.Ledger.Release(ctx, next.ReservationID, actor.ID); err != nil {
		return nil, err
	}
	s.Events.RequestRejected(ctx, leave.RequestRejected{
		RequestID:  next.ID,
		EmployeeID: next.EmployeeID,
		Stage:      leave.StageHOD,
		Reason:     comment,
	})
	return next, nil
}

func (s *Service) decideHR(ctx context.Context, req *leave.LeaveRequest, actor leave.Actor, verdict leave.Verdict, comment string) (*leave.LeaveRequest, error) {
	if actor.Role != leave.RoleHR {
		return nil, &leave.UnauthorizedError{ActorID: actor.ID, Role: actor.Role, Required: "role HR"}
	}

	next := req.Clone()
	next.HRDecision = &leave.Decision{ActorID: actor.ID, Verdict: verdict, Comment: comment, DecidedAt: time.Now()}

	if verdict == leave.VerdictApprove {
		next.Status = leave.StatusFinalApproved
		next.DocumentID = uuid.NewString()
		if err := s.commit(ctx, next, leave.StatusHRReview); err != nil {
			return nil, err
		}
		if err := s.Ledger.Commit(ctx, next.ReservationID, actor.ID); err != nil {
			return nil, err
		}
		s.Events.RequestApproved(ctx, leave.RequestApproved{
			RequestID:     next.ID,
			DocumentID:    next.DocumentID,
			EmployeeID:    next.EmployeeID,
			LeaveTypeID:   next.LeaveTypeID,
			StartDate:     next.StartDate.String(),
			EndDate:       next.EndDate.String(),
			DayCount:      next.WorkingDays,
			ApproverChain: approverChain(next),
		})
		return next, nil
	}

	next.Status = leave.StatusHRRejected
	if err := s.commit(ctx, next, leave.StatusHRReview); err != nil {
		return nil, err
	}
	if err := s.Ledger.Release(ctx, next.ReservationID, actor.ID); err != nil {
		return nil, err
	}
	s.Events.RequestRejected(ctx, leave.RequestRejected{
		RequestID:  next.ID,
		EmployeeID: next.EmployeeID,
		Stage:      leave.StageHR,
		Reason:     comment,
	})
	return next, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel is requester-initiated and only possible before HR has acted.
func (s *Service) Cancel(ctx context.Context, requestID string, actor leave.Actor) (*leave.LeaveRequest, error) {
	req, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.ID != req.EmployeeID {
		return nil, &leave.UnauthorizedError{ActorID: actor.ID, Role: actor.Role, Required: "the requester"}
	}
	if req.Status != leave.StatusDraftSubmitted && req.Status != leave.StatusHODReview {
		return nil, &leave.InvalidTransitionError{RequestID: req.ID, From: req.Status, Attempted: "cancel"}
	}

	next := req.Clone()
	next.Status = leave.StatusCancelled
	if err := s.commit(ctx, next, req.Status); err != nil {
		return nil, err
	}
	if next.ReservationID != "" {
		if err := s.Ledger.Release(ctx, next.ReservationID, actor.ID); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, requestID string) (*leave.LeaveRequest, error) {
	return s.Requests.Get(ctx, requestID)
}

// ListByEmployee returns an employee's requests, newest first.
func (s *Service) ListByEmployee(ctx context.Context, employeeID string) ([]*leave.LeaveRequest, error) {
	return s.Requests.ListByEmployee(ctx, employeeID)
}

// BalanceView is the caller-facing balance summary.
type BalanceView struct {
	EmployeeID  string
	LeaveTypeID string
	Year        int
	Entitlement decimal.Decimal
	Reserved    decimal.Decimal
	Consumed    decimal.Decimal
	Available   decimal.Decimal
}

// Balance returns the balance summary for one (employee, type, year) key.
func (s *Service) Balance(ctx context.Context, employeeID, leaveTypeID string, year int) (BalanceView, error) {
	bal, err := s.Ledger.Balance(ctx, ledger.Key{EmployeeID: employeeID, LeaveTypeID: leaveTypeID, Year: year})
	if err != nil {
		return BalanceView{}, err
	}
	return BalanceView{
		EmployeeID:  employeeID,
		LeaveTypeID: leaveTypeID,
		Year:        year,
		Entitlement: bal.Entitlement,
		Reserved:    bal.Reserved,
		Consumed:    bal.Consumed,
		Available:   bal.Available(),
	}, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// commit compare-and-swaps the transition into the store. A conflict means
// another transition won the race; the caller receives ErrInvalidTransition
// with the status that beat it.
func (s *Service) commit(ctx context.Context, next *leave.LeaveRequest, expected leave.Status) error {
	next.UpdatedAt = time.Now()
	next.Version++
	err := s.Requests.Update(ctx, next, expected)
	if err == nil {
		return nil
	}
	if errors.Is(err, leave.ErrConcurrentModification) {
		from := expected
		if current, gerr := s.Requests.Get(ctx, next.ID); gerr == nil {
			from = current.Status
		}
		return &leave.InvalidTransitionError{RequestID: next.ID, From: from, Attempted: string(next.Status)}
	}
	return err
}

func approverChain(req *leave.LeaveRequest) []leave.Decision {
	var chain []leave.Decision
	if req.HODDecision != nil {
		chain = append(chain, *req.HODDecision)
	}
	if req.HRDecision != nil {
		chain = append(chain, *req.HRDecision)
	}
	return chain
}
