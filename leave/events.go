package leave

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DOMAIN EVENTS - Consumed by the notification/document dispatcher
// =============================================================================
// Events carry enough data to regenerate the outbound document
// deterministically. Rendering, emailing, and artifact persistence are the
// dispatcher's concern, decoupled from the transition's atomicity.

// Stage identifies where in the chain a rejection happened.
type Stage string

const (
	StageHOD Stage = "HOD"
	StageHR  Stage = "HR"
)

// RequestApproved is emitted when HR finalizes an approval.
type RequestApproved struct {
	RequestID   string
	DocumentID  string
	EmployeeID  string
	LeaveTypeID string
	StartDate   string // YYYY-MM-DD
	EndDate     string // YYYY-MM-DD
	DayCount    decimal.Decimal
	// ApproverChain lists the decisions in order: department head, then HR.
	ApproverChain []Decision
}

// RequestRejected is emitted when a request is rejected at either stage.
type RequestRejected struct {
	RequestID  string
	EmployeeID string
	Stage      Stage
	Reason     string
}

// EventSink receives domain events after a transition has committed.
// Implementations must not block: dispatch happens asynchronously and a
// slow consumer must never stall an approval.
type EventSink interface {
	RequestApproved(ctx context.Context, e RequestApproved)
	RequestRejected(ctx context.Context, e RequestRejected)
}

// NopSink discards events. Useful in tests and tools.
type NopSink struct{}

func (NopSink) RequestApproved(context.Context, RequestApproved) {}
func (NopSink) RequestRejected(context.Context, RequestRejected) {}
