/*
store.go - Collaborator interfaces for the approval state machine

PURPOSE:
  Declares what the state machine needs from the outside world: durable
  request storage with compare-and-swap status transitions, and read-only
  lookups for employees and leave types (both owned by external systems).

CAS CONTRACT:
  Update commits a new request state only if the stored status still
  matches the status the transition read. Two concurrent decisions on the
  same request therefore produce exactly one successful update; the loser
  observes leave.ErrConcurrentModification and is surfaced to callers as
  an invalid transition.
*/
package approval

import (
	"context"

	"github.com/warp/leave-engine/leave"
)

// RequestStore persists leave requests.
type RequestStore interface {
	// Create inserts a new request. The request id must be unique.
	Create(ctx context.Context, req *leave.LeaveRequest) error

	// Get returns a request by id, or leave.ErrNotFound.
	Get(ctx context.Context, id string) (*leave.LeaveRequest, error)

	// Update replaces the stored request only if its current status equals
	// expectedStatus and its version equals req.Version-1. Returns
	// leave.ErrConcurrentModification otherwise.
	Update(ctx context.Context, req *leave.LeaveRequest, expectedStatus leave.Status) error

	// ListByEmployee returns an employee's requests, newest first.
	ListByEmployee(ctx context.Context, employeeID string) ([]*leave.LeaveRequest, error)
}

// EmployeeDirectory resolves employee references. Owned by the
// user-management collaborator.
type EmployeeDirectory interface {
	Employee(ctx context.Context, id string) (leave.Employee, error)
}

// TypeRegistry resolves leave types. Administrative reference data.
type TypeRegistry interface {
	LeaveType(ctx context.Context, id string) (leave.LeaveType, error)
}
