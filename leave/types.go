/*
Package leave defines the domain model shared by the leave management core.

PURPOSE:
  This package contains the reference data and entity types that the
  approval state machine, balance ledger, and API layer all agree on.
  It holds no behavior beyond small accessors; the state machine in the
  approval package owns every mutation of a LeaveRequest.

KEY TYPES:
  - LeaveType:    Immutable reference data (annual entitlement per type)
  - Employee:     Reference held for department scoping; owned externally
  - LeaveRequest: The request entity, mutated only via approval transitions
  - Decision:     One recorded verdict (actor, verdict, comment, timestamp)
  - Actor/Role:   Asserted caller identity for authorization checks

OWNERSHIP:
  User and role management live outside this core. The core receives an
  Actor whose role and department have already been asserted by the
  caller (e.g. the API layer's token middleware).

SEE ALSO:
  - errors.go: Error taxonomy
  - events.go: Domain events emitted on terminal decisions
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// LeaveType is immutable reference data describing one category of leave.
// Created and updated only by administrative collaborators outside the core.
type LeaveType struct {
	ID                string
	Name              string
	AnnualEntitlement decimal.Decimal // days per year
	Paid              bool
}

// Employee is the reference the core holds for an employee. The record
// itself is owned by the user-management collaborator.
type Employee struct {
	ID           string
	DepartmentID string
	HireDate     calendar.Date
}

// =============================================================================
// ACTORS AND ROLES
// =============================================================================

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleHOD      Role = "HOD" // head of department
	RoleHR       Role = "HR"
)

// Actor is the asserted identity performing a transition. The core trusts
// the caller to have authenticated it; the core only enforces that the
// role and department scope match the attempted transition.
type Actor struct {
	ID           string
	Role         Role
	DepartmentID string
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

type Status string

const (
	StatusDraftSubmitted Status = "DRAFT_SUBMITTED"
	StatusHODReview      Status = "HOD_REVIEW"
	StatusHODRejected    Status = "HOD_REJECTED"
	StatusHRReview       Status = "HR_REVIEW"
	StatusHRRejected     Status = "HR_REJECTED"
	StatusFinalApproved  Status = "FINAL_APPROVED"
	StatusCancelled      Status = "CANCELLED"
)

// Terminal reports whether a status can never transition again.
func (s Status) Terminal() bool {
	switch s {
	case StatusHODRejected, StatusHRRejected, StatusFinalApproved, StatusCancelled:
		return true
	}
	return false
}

type Verdict string

const (
	VerdictApprove Verdict = "APPROVE"
	VerdictReject  Verdict = "REJECT"
)

// Decision is one recorded verdict in the approval chain. Two of these
// (department head, then HR) are attached to a request as they happen,
// preserving actor, timestamp and comment for audit.
type Decision struct {
	ActorID   string
	Verdict   Verdict
	Comment   string
	DecidedAt time.Time
}

// LeaveRequest is owned exclusively by the approval state machine:
// created on submission, mutated only through defined transitions.
// Terminal states are never reopened.
type LeaveRequest struct {
	ID          string
	EmployeeID  string
	LeaveTypeID string

	StartDate calendar.Date
	EndDate   calendar.Date

	// WorkingDays is computed once at submission from the holiday calendar.
	WorkingDays decimal.Decimal

	Status Status
	Reason string

	// ReservationID ties the request to its balance reservation.
	// Empty once the reservation has been settled.
	ReservationID string

	HODDecision *Decision
	HRDecision  *Decision

	// DocumentID is assigned exactly once, at final approval.
	DocumentID string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version supports optimistic concurrency in the request store.
	Version int64
}

// BalanceYear is the ledger year a request draws from: the year of its
// start date.
func (r *LeaveRequest) BalanceYear() int { return r.StartDate.Year }

// Clone returns a deep copy, so callers can mutate a candidate state
// without touching the stored request.
func (r *LeaveRequest) Clone() *LeaveRequest {
	c := *r
	if r.HODDecision != nil {
		d := *r.HODDecision
		c.HODDecision = &d
	}
	if r.HRDecision != nil {
		d := *r.HRDecision
		c.HRDecision = &d
	}
	return &c
}
