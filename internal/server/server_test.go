package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workbook/internal/authorization"
	"github.com/smallbiznis/workbook/internal/clock"
	"github.com/smallbiznis/workbook/internal/config"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/smallbiznis/workbook/internal/reporting/export"
	"github.com/smallbiznis/workbook/internal/reporting/rollup"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	timesheetdomain "github.com/smallbiznis/workbook/internal/timesheet/domain"
	"github.com/smallbiznis/workbook/pkg/civil"
	"github.com/smallbiznis/workbook/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeAuthz struct {
	deny  map[string]bool
	calls []string
}

func (f *fakeAuthz) Authorize(ctx context.Context, actor string, tenantID string, object string, action string) error {
	key := object + "/" + action
	f.calls = append(f.calls, actor+"@"+tenantID+":"+key)
	if f.deny[key] {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeReporting struct {
	timeSummaryReq reportingdomain.TimeSummaryRequest
	dailyErr       error
	called         int
}

func (f *fakeReporting) TimeSummary(ctx context.Context, req reportingdomain.TimeSummaryRequest) (*reportingdomain.TimeSummaryReport, error) {
	f.called++
	f.timeSummaryReq = req
	if _, ok := tenantcontext.TenantIDFromContext(ctx); !ok {
		return nil, scope.ErrMissingTenant
	}
	return &reportingdomain.TimeSummaryReport{Data: []rollup.EntryRow{}}, nil
}

func (f *fakeReporting) TaskStatistics(ctx context.Context, req reportingdomain.TaskStatisticsRequest) (*reportingdomain.TaskStatisticsReport, error) {
	f.called++
	return &reportingdomain.TaskStatisticsReport{}, nil
}

func (f *fakeReporting) ProjectProgress(ctx context.Context, req reportingdomain.ProjectRequest) (*reportingdomain.ProjectProgressReport, error) {
	f.called++
	return &reportingdomain.ProjectProgressReport{}, nil
}

func (f *fakeReporting) ProjectBudget(ctx context.Context, req reportingdomain.ProjectRequest) (*reportingdomain.ProjectBudgetReport, error) {
	f.called++
	return &reportingdomain.ProjectBudgetReport{}, nil
}

func (f *fakeReporting) TeamUtilization(ctx context.Context, req reportingdomain.TimeFilterRequest) (*reportingdomain.TeamUtilizationReport, error) {
	f.called++
	return &reportingdomain.TeamUtilizationReport{}, nil
}

func (f *fakeReporting) DailyTotals(ctx context.Context, req reportingdomain.DailyTotalsRequest) (*reportingdomain.DailyTotalsReport, error) {
	f.called++
	if f.dailyErr != nil {
		return nil, f.dailyErr
	}
	return &reportingdomain.DailyTotalsReport{
		Data: []reportingdomain.DateHours{
			{DateTime: rollup.DateTime{WorkDate: civil.Date("2024-01-01")}},
		},
	}, nil
}

func (f *fakeReporting) InvoicesPayments(ctx context.Context, req reportingdomain.InvoiceRequest) (*reportingdomain.InvoicesPaymentsReport, error) {
	f.called++
	return &reportingdomain.InvoicesPaymentsReport{}, nil
}

type fakePayroll struct {
	previewReq payrolldomain.PreviewRequest
	processErr error
	processed  snowflake.ID
}

func (f *fakePayroll) Calculate(ctx context.Context, req payrolldomain.PreviewRequest) (*payrolldomain.Preview, error) {
	f.previewReq = req
	return &payrolldomain.Preview{StartDate: req.StartDate, EndDate: req.EndDate}, nil
}

func (f *fakePayroll) CreateBatch(ctx context.Context, req payrolldomain.CreateBatchRequest) (*payrolldomain.BatchDetail, error) {
	return &payrolldomain.BatchDetail{Batch: payrolldomain.Batch{Reference: &req.Reference}}, nil
}

func (f *fakePayroll) ProcessBatch(ctx context.Context, id snowflake.ID) (*payrolldomain.ProcessResult, error) {
	f.processed = id
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &payrolldomain.ProcessResult{Batch: payrolldomain.Batch{ID: id, Status: payrolldomain.BatchStatusCompleted}}, nil
}

func (f *fakePayroll) GetBatch(ctx context.Context, id snowflake.ID) (*payrolldomain.BatchDetail, error) {
	return nil, payrolldomain.ErrBatchNotFound
}

func (f *fakePayroll) ListBatches(ctx context.Context, req payrolldomain.ListBatchesRequest) (*payrolldomain.ListBatchesResponse, error) {
	return &payrolldomain.ListBatchesResponse{}, nil
}

type fakeTimesheets struct {
	last timesheetdomain.TransitionRequest
}

func (f *fakeTimesheets) Transition(ctx context.Context, req timesheetdomain.TransitionRequest) (*timesheetdomain.Timesheet, error) {
	f.last = req
	return &timesheetdomain.Timesheet{ID: req.TimesheetID, Status: req.To}, nil
}

type fakePayments struct {
	recorded  paymentdomain.RecordRequest
	listedFor snowflake.ID
}

func (f *fakePayments) Record(ctx context.Context, req paymentdomain.RecordRequest) (*paymentdomain.Payment, error) {
	f.recorded = req
	if !req.Amount.IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}
	return &paymentdomain.Payment{
		ID:          55,
		InvoiceID:   req.InvoiceID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		NetAmount:   req.Amount.Sub(req.FeeAmount),
		PaymentDate: req.PaymentDate,
		Method:      req.Method,
		Status:      paymentdomain.PaymentStatusCompleted,
	}, nil
}

func (f *fakePayments) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	f.listedFor = invoiceID
	if invoiceID == 404 {
		return nil, paymentdomain.ErrInvoiceMissing
	}
	return []paymentdomain.Payment{{ID: 1, InvoiceID: &invoiceID}}, nil
}

type testDeps struct {
	authz      *fakeAuthz
	reporting  *fakeReporting
	payroll    *fakePayroll
	payments   *fakePayments
	timesheets *fakeTimesheets
}

func newTestRouter(t *testing.T) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := &testDeps{
		authz:      &fakeAuthz{deny: map[string]bool{}},
		reporting:  &fakeReporting{},
		payroll:    &fakePayroll{},
		payments:   &fakePayments{},
		timesheets: &fakeTimesheets{},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:          router,
		Cfg:          config.Config{},
		Clock:        clock.NewFakeClockOn(2024, time.February, 1),
		AuthzSvc:     deps.authz,
		ReportingSvc: deps.reporting,
		PayrollSvc:   deps.payroll,
		PaymentSvc:   deps.payments,
		TimesheetSvc: deps.timesheets,
	})
	return router, deps
}

func doRequest(router *gin.Engine, method, target string, body []byte, withTenant bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if withTenant {
		req.Header.Set("X-Tenant-ID", "100")
		req.Header.Set("X-User-ID", "7")
		req.Header.Set("X-User-Role", "admin")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func errorType(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Type
}

func TestReportWithoutTenantIsUnauthorized(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := doRequest(router, http.MethodGet, "/api/reports/time-summary", nil, false)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", errorType(t, resp))
	assert.Zero(t, deps.reporting.called)
}

func TestReportDeniedByRole(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.authz.deny[authorization.ObjectFinancialReport+"/"+authorization.ActionReportView] = true

	resp := doRequest(router, http.MethodGet, "/api/reports/project-budget", nil, true)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Zero(t, deps.reporting.called)
	assert.Equal(t, []string{"user:7@100:financial_report/report.view"}, deps.authz.calls)
}

func TestTimeSummaryBindsQuery(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := doRequest(router, http.MethodGet,
		"/api/reports/time-summary?user_id=5&start_date=2024-01-01&end_date=2024-01-31&billable=true&limit=20", nil, true)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	req := deps.reporting.timeSummaryReq
	require.NotNil(t, req.UserID)
	assert.Equal(t, snowflake.ID(5), *req.UserID)
	require.NotNil(t, req.StartDate)
	assert.Equal(t, civil.Date("2024-01-01"), *req.StartDate)
	require.NotNil(t, req.Billable)
	assert.True(t, *req.Billable)
	assert.Equal(t, 20, req.Limit)
	assert.Nil(t, req.ProjectID)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body, "data")
	assert.Contains(t, body, "summary")
	assert.Contains(t, body, "breakdown")
}

func TestReportRejectsMalformedQuery(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := doRequest(router, http.MethodGet, "/api/reports/time-summary?user_id=abc", nil, true)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, deps.reporting.called)
}

func TestDailyTotalsExportsWorkbook(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := doRequest(router, http.MethodGet, "/api/reports/daily-totals?format=xlsx", nil, true)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, export.ContentType, resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "daily-totals-2024-02-01.xlsx")
	assert.Equal(t, []string{
		"user:7@100:time_report/report.view",
		"user:7@100:time_report/report.export",
	}, deps.authz.calls)

	f, err := excelize.OpenReader(bytes.NewReader(resp.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	cell, err := f.GetCellValue("Daily Totals", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", cell)
}

func TestExportNeedsExportPermission(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.authz.deny[authorization.ObjectTimeReport+"/"+authorization.ActionReportExport] = true

	resp := doRequest(router, http.MethodGet, "/api/reports/daily-totals?format=xlsx", nil, true)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = doRequest(router, http.MethodGet, "/api/reports/daily-totals", nil, true)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestExportUnsupportedReport(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doRequest(router, http.MethodGet, "/api/reports/task-statistics?format=xlsx", nil, true)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReportTimeoutIsGatewayTimeout(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.reporting.dailyErr = fmt.Errorf("%w: daily_totals exceeded 1s", reportingdomain.ErrReportTimeout)

	resp := doRequest(router, http.MethodGet, "/api/reports/daily-totals", nil, true)

	assert.Equal(t, http.StatusGatewayTimeout, resp.Code)
	assert.Equal(t, "report_timeout", errorType(t, resp))
}

func TestPayrollPreviewParsesUserIDs(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := doRequest(router, http.MethodGet,
		"/api/payroll/preview?start_date=2024-01-01&end_date=2024-01-31&user_ids=1,2&user_ids=3", nil, true)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []snowflake.ID{1, 2, 3}, deps.payroll.previewReq.UserIDs)
	assert.Equal(t, civil.Date("2024-01-31"), deps.payroll.previewReq.EndDate)
	assert.Equal(t, []string{"user:7@100:payroll/payroll.preview"}, deps.authz.calls)
}

func TestCreatePayrollBatch(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doRequest(router, http.MethodPost, "/api/payroll/batches",
		[]byte(`{"start_date":"2024-01-01","end_date":"2024-01-31","reference":"JAN-2024"}`), true)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"reference":"JAN-2024"`)
}

func TestProcessPayrollBatch(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := doRequest(router, http.MethodPost, "/api/payroll/batches/42/process", nil, true)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, snowflake.ID(42), deps.payroll.processed)

	deps.payroll.processErr = payrolldomain.ErrBatchLocked
	resp = doRequest(router, http.MethodPost, "/api/payroll/batches/42/process", nil, true)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = doRequest(router, http.MethodPost, "/api/payroll/batches/nope/process", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetMissingPayrollBatch(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doRequest(router, http.MethodGet, "/api/payroll/batches/42", nil, true)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTimesheetReviewNeedsReviewAction(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := doRequest(router, http.MethodPost, "/api/timesheets/9/approve", []byte(`{"note":"looks right"}`), true)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, timesheetdomain.StatusApproved, deps.timesheets.last.To)
	assert.Equal(t, "looks right", deps.timesheets.last.Note)
	assert.Equal(t, []string{"user:7@100:timesheet/timesheet.review"}, deps.authz.calls)

	resp = doRequest(router, http.MethodPost, "/api/timesheets/9/submit", nil, true)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, timesheetdomain.StatusSubmitted, deps.timesheets.last.To)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doRequest(router, http.MethodGet, "/api/nothing", nil, true)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"missing tenant", scope.ErrMissingTenant, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"bad range", fmt.Errorf("report: %w", scope.ErrInvalidRange), http.StatusBadRequest, "validation_error"},
		{"bad order", rollup.ErrInvalidOrder, http.StatusBadRequest, "validation_error"},
		{"field errors", validation.FieldErrors{"limit": "lte"}, http.StatusBadRequest, "validation_error"},
		{"batch exists", payrolldomain.ErrBatchExists, http.StatusConflict, "conflict"},
		{"transition", payrolldomain.ErrInvalidTransition, http.StatusConflict, "conflict"},
		{"not found", payrolldomain.ErrBatchNotFound, http.StatusNotFound, "not_found"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"timeout", reportingdomain.ErrReportTimeout, http.StatusGatewayTimeout, "report_timeout"},
		{"inconsistent", rollup.ErrInconsistentRollup, http.StatusInternalServerError, "internal_error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}

func TestFieldErrorsAreListed(t *testing.T) {
	_, payload := mapError(validation.FieldErrors{"start_date": "civildate", "limit": "lte"})

	require.Len(t, payload.Errors, 2)
	assert.Equal(t, "limit", payload.Errors[0].Field)
	assert.Equal(t, "lte", payload.Errors[0].Code)
	assert.Equal(t, "start_date", payload.Errors[1].Field)

	kind, code := classifyErrorForLog(validation.FieldErrors{"limit": "lte"})
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "lte", code)
}

func TestReportFromPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports/team-utilization", nil)

	assert.Equal(t, reportingdomain.ReportTeamUtilization, reportFromPath(c))
}

func TestRecordPayment(t *testing.T) {
	router, deps := newTestRouter(t)

	body := []byte(`{"invoice_id":"900","user_id":"7","amount":"120.50","fee_amount":"0.50","method":"Bank_Transfer"}`)
	resp := doRequest(router, http.MethodPost, "/api/payments", body, true)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.NotNil(t, deps.payments.recorded.InvoiceID)
	assert.Equal(t, snowflake.ID(900), *deps.payments.recorded.InvoiceID)
	assert.Equal(t, snowflake.ID(7), deps.payments.recorded.UserID)
	assert.Equal(t, "120.5", deps.payments.recorded.Amount.String())
	assert.Equal(t, civil.Date("2024-02-01"), deps.payments.recorded.PaymentDate)
	assert.Contains(t, deps.authz.calls, "user:7@100:payment/payment.record")
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	router, _ := newTestRouter(t)

	body := []byte(`{"user_id":"7","amount":"0","method":"cash"}`)
	resp := doRequest(router, http.MethodPost, "/api/payments", body, true)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	var payload errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Len(t, payload.Error.Errors, 1)
	assert.Equal(t, "invalid_amount", payload.Error.Errors[0].Code)
}

func TestListInvoicePayments(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := doRequest(router, http.MethodGet, "/api/invoices/900/payments", nil, true)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, snowflake.ID(900), deps.payments.listedFor)

	resp = doRequest(router, http.MethodGet, "/api/invoices/404/payments", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListInvoicePaymentsForbidden(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.authz.deny["payment/payment.view"] = true

	resp := doRequest(router, http.MethodGet, "/api/invoices/900/payments", nil, true)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}
