package authorization

import (
	"context"
	"errors"
)

const (
	ObjectTimeReport      = "time_report"
	ObjectTaskReport      = "task_report"
	ObjectProjectReport   = "project_report"
	ObjectFinancialReport = "financial_report"
	ObjectPayroll         = "payroll"
	ObjectTimesheet       = "timesheet"
	ObjectPayment         = "payment"
)

const (
	ActionReportView   = "report.view"
	ActionReportExport = "report.export"

	ActionPayrollPreview = "payroll.preview"
	ActionPayrollView    = "payroll.view"
	ActionPayrollCreate  = "payroll.create"
	ActionPayrollProcess = "payroll.process"

	ActionTimesheetSubmit = "timesheet.submit"
	ActionTimesheetReview = "timesheet.review"

	ActionPaymentRecord = "payment.record"
	ActionPaymentView   = "payment.view"
)

type Service interface {
	// Authorize checks that actor ("user:<id>") may perform action on object
	// inside the tenant.
	Authorize(ctx context.Context, actor string, tenantID string, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
