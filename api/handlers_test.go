package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
	"github.com/warp/leave-engine/store/memory"
)

const testSecret = "test-secret"

// =============================================================================
// TEST HARNESS
// =============================================================================

type harness struct {
	router http.Handler

	employeeToken string
	hodToken      string
	hrToken       string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	annual := leave.LeaveType{ID: "annual", Name: "Annual Leave",
		AnnualEntitlement: decimal.NewFromInt(20), Paid: true}
	registry := memory.NewRegistry(annual)

	directory := memory.NewDirectory(
		leave.Employee{ID: "emp-1", DepartmentID: "eng",
			HireDate: calendar.NewDate(2020, time.January, 6)},
	)

	ledgerStore := memory.NewLedgerStore()
	entitlement := func(ctx context.Context, key ledger.Key) (decimal.Decimal, error) {
		lt, err := registry.LeaveType(ctx, key.LeaveTypeID)
		if err != nil {
			return decimal.Zero, err
		}
		return lt.AnnualEntitlement, nil
	}
	l := ledger.New(ledgerStore, entitlement)

	svc := &approval.Service{
		Requests:  memory.NewRequestStore(),
		Employees: directory,
		Types:     registry,
		Ledger:    l,
		Calendar:  calendar.New(),
		Events:    leave.NopSink{},
	}

	h := api.NewHandler(svc, l, svc.Calendar)
	router := api.NewRouter(h, testSecret, []string{"http://localhost:5173"})

	token := func(actor leave.Actor) string {
		tok, err := api.GenerateToken(testSecret, actor, time.Hour)
		require.NoError(t, err)
		return tok
	}

	return &harness{
		router:        router,
		employeeToken: token(leave.Actor{ID: "emp-1", Role: leave.RoleEmployee, DepartmentID: "eng"}),
		hodToken:      token(leave.Actor{ID: "hod-1", Role: leave.RoleHOD, DepartmentID: "eng"}),
		hrToken:       token(leave.Actor{ID: "hr-1", Role: leave.RoleHR}),
	}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (h *harness) submit(t *testing.T) api.RequestDTO {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/requests", h.employeeToken, api.SubmitRequestDTO{
		LeaveTypeID: "annual",
		StartDate:   "2025-03-10",
		EndDate:     "2025-03-14",
		Reason:      "family visit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.RequestDTO](t, rec)
}

// =============================================================================
// AUTH
// =============================================================================

func TestAPI_RequiresBearerToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/holidays", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/holidays", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_HealthzIsPublic(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_CreatesRequestInHODReview(t *testing.T) {
	h := newHarness(t)

	dto := h.submit(t)
	assert.Equal(t, "emp-1", dto.EmployeeID)
	assert.Equal(t, "HOD_REVIEW", dto.Status)
	assert.Equal(t, "5", dto.WorkingDays)
	assert.NotEmpty(t, dto.ID)
}

func TestSubmit_InvalidDate(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/requests", h.employeeToken, api.SubmitRequestDTO{
		LeaveTypeID: "annual", StartDate: "10/03/2025", EndDate: "2025-03-14",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_EndBeforeStart(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/requests", h.employeeToken, api.SubmitRequestDTO{
		LeaveTypeID: "annual", StartDate: "2025-03-14", EndDate: "2025-03-10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_InsufficientBalance(t *testing.T) {
	h := newHarness(t)
	// 2025-03-03 to 2025-04-11 spans 30 weekdays, over the 20-day entitlement.
	rec := h.do(t, http.MethodPost, "/api/requests", h.employeeToken, api.SubmitRequestDTO{
		LeaveTypeID: "annual", StartDate: "2025-03-03", EndDate: "2025-04-11",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	errResp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "Insufficient balance", errResp.Error)
}

func TestSubmit_UnknownLeaveType(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/requests", h.employeeToken, api.SubmitRequestDTO{
		LeaveTypeID: "sabbatical", StartDate: "2025-03-10", EndDate: "2025-03-14",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// DECIDE / CANCEL
// =============================================================================

func TestFullApprovalFlow(t *testing.T) {
	// GIVEN: A submitted request
	// WHEN: HOD approves, then HR approves
	// THEN: FINAL_APPROVED with a document id, balance shows 5 consumed
	h := newHarness(t)
	req := h.submit(t)

	rec := h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/decision", h.hodToken,
		api.DecisionDTO{Verdict: "APPROVE", Comment: "ok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "HR_REVIEW", decode[api.RequestDTO](t, rec).Status)

	rec = h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/decision", h.hrToken,
		api.DecisionDTO{Verdict: "APPROVE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	final := decode[api.RequestDTO](t, rec)
	assert.Equal(t, "FINAL_APPROVED", final.Status)
	assert.NotEmpty(t, final.DocumentID)
	require.NotNil(t, final.HODDecision)
	require.NotNil(t, final.HRDecision)

	rec = h.do(t, http.MethodGet, "/api/employees/emp-1/balance?type=annual&year=2025", h.employeeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decode[api.BalanceDTO](t, rec)
	assert.Equal(t, "5", bal.Consumed)
	assert.Equal(t, "0", bal.Reserved)
	assert.Equal(t, "15", bal.Available)
}

func TestDecide_WrongRoleForbidden(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t)

	// HR cannot act while the request is in HOD review.
	rec := h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/decision", h.hrToken,
		api.DecisionDTO{Verdict: "APPROVE"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDecide_BadVerdict(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t)

	rec := h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/decision", h.hodToken,
		api.DecisionDTO{Verdict: "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancel_OnlyRequester(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t)

	rec := h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/cancel", h.hodToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/cancel", h.employeeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decode[api.RequestDTO](t, rec).Status)
}

func TestDecide_AfterTerminalConflict(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t)

	rec := h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/cancel", h.employeeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/decision", h.hodToken,
		api.DecisionDTO{Verdict: "APPROVE"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// VISIBILITY
// =============================================================================

func TestVisibility_EmployeeCannotReadOthers(t *testing.T) {
	h := newHarness(t)

	otherToken, err := api.GenerateToken(testSecret,
		leave.Actor{ID: "emp-2", Role: leave.RoleEmployee, DepartmentID: "sales"}, time.Hour)
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/employees/emp-1/requests", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reviewer roles may read any employee.
	rec = h.do(t, http.MethodGet, "/api/employees/emp-1/requests", h.hrToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// HOLIDAYS AND JOURNAL
// =============================================================================

func TestListHolidays(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/holidays?year=2025", h.employeeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	holidays := decode[[]api.HolidayDTO](t, rec)
	require.Len(t, holidays, 10)

	names := make(map[string]string)
	for _, hd := range holidays {
		names[hd.Name] = hd.Date
	}
	assert.Equal(t, "2025-12-12", names["Jamhuri Day"])
	assert.Equal(t, "2025-04-18", names["Good Friday"])
}

func TestJournal_ReflectsLifecycle(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t)

	rec := h.do(t, http.MethodPost, "/api/requests/"+req.ID+"/decision", h.hodToken,
		api.DecisionDTO{Verdict: "REJECT", Comment: "coverage gap"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/employees/emp-1/journal", h.employeeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := decode[[]api.JournalEntryDTO](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "reserve", entries[0].Kind)
	assert.Equal(t, "release", entries[1].Kind)
	assert.Equal(t, req.ID, entries[0].RequestID)
}
