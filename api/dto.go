/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Wire representations, kept separate from domain types. Dates travel as
  YYYY-MM-DD strings, day counts and balances as decimal strings.
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequestDTO is the body of POST /api/requests. The requester is
// the authenticated actor.
type SubmitRequestDTO struct {
	LeaveTypeID string `json:"leave_type_id"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD
	EndDate     string `json:"end_date"`   // YYYY-MM-DD
	Reason      string `json:"reason"`
}

// DecisionDTO is the body of POST /api/requests/{id}/decision.
type DecisionDTO struct {
	Verdict string `json:"verdict"` // APPROVE or REJECT
	Comment string `json:"comment"`
}

// DecisionRecordDTO is one recorded verdict in the approval chain.
type DecisionRecordDTO struct {
	ActorID   string `json:"actor_id"`
	Verdict   string `json:"verdict"`
	Comment   string `json:"comment,omitempty"`
	DecidedAt string `json:"decided_at"`
}

// RequestDTO is the wire form of a leave request.
type RequestDTO struct {
	ID          string             `json:"id"`
	EmployeeID  string             `json:"employee_id"`
	LeaveTypeID string             `json:"leave_type_id"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	WorkingDays string             `json:"working_days"`
	Status      string             `json:"status"`
	Reason      string             `json:"reason,omitempty"`
	HODDecision *DecisionRecordDTO `json:"hod_decision,omitempty"`
	HRDecision  *DecisionRecordDTO `json:"hr_decision,omitempty"`
	DocumentID  string             `json:"document_id,omitempty"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
}

func toRequestDTO(req *leave.LeaveRequest) RequestDTO {
	return RequestDTO{
		ID:          req.ID,
		EmployeeID:  req.EmployeeID,
		LeaveTypeID: req.LeaveTypeID,
		StartDate:   req.StartDate.String(),
		EndDate:     req.EndDate.String(),
		WorkingDays: req.WorkingDays.String(),
		Status:      string(req.Status),
		Reason:      req.Reason,
		HODDecision: toDecisionDTO(req.HODDecision),
		HRDecision:  toDecisionDTO(req.HRDecision),
		DocumentID:  req.DocumentID,
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   req.UpdatedAt.Format(time.RFC3339),
	}
}

func toDecisionDTO(d *leave.Decision) *DecisionRecordDTO {
	if d == nil {
		return nil
	}
	return &DecisionRecordDTO{
		ActorID:   d.ActorID,
		Verdict:   string(d.Verdict),
		Comment:   d.Comment,
		DecidedAt: d.DecidedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// BALANCES AND JOURNAL
// =============================================================================

// BalanceDTO is the wire form of a balance summary.
type BalanceDTO struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	Year        int    `json:"year"`
	Entitlement string `json:"entitlement"`
	Reserved    string `json:"reserved"`
	Consumed    string `json:"consumed"`
	Available   string `json:"available"`
}

func toBalanceDTO(v approval.BalanceView) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  v.EmployeeID,
		LeaveTypeID: v.LeaveTypeID,
		Year:        v.Year,
		Entitlement: v.Entitlement.String(),
		Reserved:    v.Reserved.String(),
		Consumed:    v.Consumed.String(),
		Available:   v.Available.String(),
	}
}

// JournalEntryDTO is one ledger journal line.
type JournalEntryDTO struct {
	ID          string `json:"id"`
	LeaveTypeID string `json:"leave_type_id"`
	Year        int    `json:"year"`
	Kind        string `json:"kind"`
	Days        string `json:"days"`
	RequestID   string `json:"request_id"`
	ActorID     string `json:"actor_id"`
	At          string `json:"at"`
}

func toJournalDTO(e ledger.Entry) JournalEntryDTO {
	return JournalEntryDTO{
		ID:          e.ID,
		LeaveTypeID: e.Key.LeaveTypeID,
		Year:        e.Key.Year,
		Kind:        string(e.Kind),
		Days:        e.Days.String(),
		RequestID:   e.RequestID,
		ActorID:     e.ActorID,
		At:          e.At.Format(time.RFC3339),
	}
}

// HolidayDTO is one public holiday.
type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}
