/*
handlers.go - HTTP handlers for the leave management API

PURPOSE:
  Exposes the approval state machine, balance ledger, and holiday
  calendar over REST. Handles parsing, DTO mapping, and the error-to-
  status translation; all business rules live in the core packages.

ENDPOINTS:
  Requests:
    POST /api/requests                  Submit (requester = actor)
    GET  /api/requests/{id}             Fetch one request
    POST /api/requests/{id}/decision    HOD/HR verdict (role from token)
    POST /api/requests/{id}/cancel      Requester-initiated cancel

  Employees:
    GET  /api/employees/{id}/requests   Request history, newest first
    GET  /api/employees/{id}/balance    Balance summary (?type=&year=)
    GET  /api/employees/{id}/journal    Full ledger journal

  Calendar:
    GET  /api/holidays?year=2025        Public holidays for a year

ERROR MAPPING:
  400  invalid input, invalid range, zero-day submission
  403  actor lacks role or department scope
  404  unknown request/employee/type
  409  invalid transition, insufficient balance, storage conflict
  500  everything else

VISIBILITY:
  Employees see their own data; HOD and HR roles may read any employee.

SEE ALSO:
  - auth.go: Actor assertion
  - server.go: Router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// Handler holds the handler dependencies.
type Handler struct {
	Service  *approval.Service
	Ledger   *ledger.Ledger
	Calendar *calendar.Calendar
}

func NewHandler(svc *approval.Service, l *ledger.Ledger, cal *calendar.Calendar) *Handler {
	return &Handler{Service: svc, Ledger: l, Calendar: cal}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a leave request for the authenticated actor.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor on request", nil)
		return
	}

	var dto SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if dto.LeaveTypeID == "" {
		writeError(w, http.StatusBadRequest, "leave_type_id is required", nil)
		return
	}
	start, err := calendar.ParseDate(dto.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date, expected YYYY-MM-DD", err)
		return
	}
	end, err := calendar.ParseDate(dto.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date, expected YYYY-MM-DD", err)
		return
	}

	req, err := h.Service.Submit(r.Context(), actor.ID, dto.LeaveTypeID, start, end, dto.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// DecideRequest records a verdict; the stage is chosen from the request's
// current status and the actor's role is checked by the state machine.
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor on request", nil)
		return
	}
	requestID := chi.URLParam(r, "id")

	var dto DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	verdict := leave.Verdict(dto.Verdict)
	if verdict != leave.VerdictApprove && verdict != leave.VerdictReject {
		writeError(w, http.StatusBadRequest, "verdict must be APPROVE or REJECT", nil)
		return
	}

	req, err := h.Service.Decide(r.Context(), requestID, actor, verdict, dto.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// CancelRequest withdraws the actor's own request before HR has acted.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor on request", nil)
		return
	}

	req, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// GetRequest returns one request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	req, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !canView(actor, req.EmployeeID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this request", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListRequests returns an employee's request history, newest first.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	employeeID := chi.URLParam(r, "id")
	if !canView(actor, employeeID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this employee", nil)
		return
	}

	requests, err := h.Service.ListByEmployee(r.Context(), employeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBalance returns the balance for one (employee, type, year) key.
// Year defaults to the current year.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	employeeID := chi.URLParam(r, "id")
	if !canView(actor, employeeID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this employee", nil)
		return
	}

	leaveTypeID := r.URL.Query().Get("type")
	if leaveTypeID == "" {
		writeError(w, http.StatusBadRequest, "type query parameter is required", nil)
		return
	}
	year := time.Now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed
	}

	view, err := h.Service.Balance(r.Context(), employeeID, leaveTypeID, year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(view))
}

// GetJournal returns every ledger mutation for an employee, oldest first.
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	employeeID := chi.URLParam(r, "id")
	if !canView(actor, employeeID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this employee", nil)
		return
	}

	entries, err := h.Ledger.Journal(r.Context(), employeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]JournalEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toJournalDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListHolidays returns the public holidays for a year.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed
	}

	set := h.Calendar.HolidaysFor(year)
	dtos := make([]HolidayDTO, 0, set.Len())
	for _, holiday := range set.Holidays() {
		dtos = append(dtos, HolidayDTO{Date: holiday.Date.String(), Name: holiday.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// canView limits employee-scoped reads to the employee themselves and to
// reviewer roles.
func canView(actor leave.Actor, employeeID string) bool {
	if actor.ID == employeeID {
		return true
	}
	return actor.Role == leave.RoleHOD || actor.Role == leave.RoleHR
}

// writeDomainError maps core errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, leave.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, leave.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Not authorized", err)
	case errors.Is(err, leave.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid transition", err)
	case errors.Is(err, leave.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "Insufficient balance", err)
	case errors.Is(err, leave.ErrConflict):
		writeError(w, http.StatusConflict, "Concurrent update, retry", err)
	case errors.Is(err, calendar.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
	case errors.Is(err, approval.ErrZeroDayRequest):
		writeError(w, http.StatusBadRequest, "Range contains no working day", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
