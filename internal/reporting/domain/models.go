// Package domain defines the report contracts: typed requests and the
// {data, summary, breakdown} responses built from rollups.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/workbook/internal/invoice/domain"
	projectdomain "github.com/smallbiznis/workbook/internal/project/domain"
	"github.com/smallbiznis/workbook/internal/reporting/rollup"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"github.com/smallbiznis/workbook/pkg/civil"
)

// Report names, also used as metric and cache labels.
const (
	ReportTimeSummary      = "time_summary"
	ReportTaskStatistics   = "task_statistics"
	ReportProjectProgress  = "project_progress"
	ReportProjectBudget    = "project_budget"
	ReportTeamUtilization  = "team_utilization"
	ReportDailyTotals      = "daily_totals"
	ReportInvoicesPayments = "invoices_payments"
)

var (
	ErrReportTimeout = errors.New("report_timeout")
	ErrInvalidStatus = errors.New("invalid_status")
)

type Report[D any, S any, B any] struct {
	Data      D `json:"data"`
	Summary   S `json:"summary"`
	Breakdown B `json:"breakdown"`
}

// TimeFilterRequest is the shared filter of time entry reports.
type TimeFilterRequest struct {
	UserID    *snowflake.ID `json:"user_id,omitempty" form:"user_id"`
	ProjectID *snowflake.ID `json:"project_id,omitempty" form:"project_id"`
	StartDate *civil.Date   `json:"start_date,omitempty" form:"start_date" validate:"omitempty,civildate"`
	EndDate   *civil.Date   `json:"end_date,omitempty" form:"end_date" validate:"omitempty,civildate"`
	Billable  *bool         `json:"billable,omitempty" form:"billable"`
}

func (r TimeFilterRequest) Params() scope.Params {
	return scope.Params{
		UserID:    r.UserID,
		ProjectID: r.ProjectID,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Billable:  r.Billable,
	}
}

type TimeSummaryRequest struct {
	TimeFilterRequest
	// Limit caps the detail rows; zero returns all of them.
	Limit int `json:"limit,omitempty" form:"limit" validate:"gte=0,lte=5000"`
}

type TaskStatisticsRequest struct {
	UserID    *snowflake.ID `json:"user_id,omitempty" form:"user_id"`
	ProjectID *snowflake.ID `json:"project_id,omitempty" form:"project_id"`
	StartDate *civil.Date   `json:"start_date,omitempty" form:"start_date" validate:"omitempty,civildate"`
	EndDate   *civil.Date   `json:"end_date,omitempty" form:"end_date" validate:"omitempty,civildate"`
}

func (r TaskStatisticsRequest) Params() scope.Params {
	return scope.Params{UserID: r.UserID, ProjectID: r.ProjectID, StartDate: r.StartDate, EndDate: r.EndDate}
}

type ProjectRequest struct {
	TimeFilterRequest
	Status string `json:"status,omitempty" form:"status"`
}

type DailyTotalsRequest struct {
	TimeFilterRequest
	// Order overrides the configured default.
	Order string `json:"order,omitempty" form:"order"`
}

type InvoiceRequest struct {
	UserID    *snowflake.ID `json:"user_id,omitempty" form:"user_id"`
	StartDate *civil.Date   `json:"start_date,omitempty" form:"start_date" validate:"omitempty,civildate"`
	EndDate   *civil.Date   `json:"end_date,omitempty" form:"end_date" validate:"omitempty,civildate"`
	Status    string        `json:"status,omitempty" form:"status"`
}

func (r InvoiceRequest) Params() scope.Params {
	return scope.Params{UserID: r.UserID, StartDate: r.StartDate, EndDate: r.EndDate}
}

// Hours is the display form of a minute aggregate.
type Hours struct {
	TotalHours       decimal.Decimal `json:"total_hours"`
	BillableHours    decimal.Decimal `json:"billable_hours"`
	NonBillableHours decimal.Decimal `json:"non_billable_hours"`
}

type UserHours struct {
	rollup.UserTime
	Hours
}

type ProjectHours struct {
	rollup.ProjectTime
	Hours
}

type DateHours struct {
	rollup.DateTime
	Hours
}

type TimeSummary struct {
	rollup.TimeTotals
	Hours
	UtilizationRate    decimal.Decimal `json:"utilization_rate"`
	DaysWorked         int64           `json:"days_worked"`
	AverageHoursPerDay decimal.Decimal `json:"average_hours_per_day"`
}

type TimeBreakdown struct {
	ByUser    []UserHours    `json:"by_user"`
	ByProject []ProjectHours `json:"by_project"`
	ByDate    []DateHours    `json:"by_date"`
}

type TimeSummaryReport = Report[[]rollup.EntryRow, TimeSummary, TimeBreakdown]

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type TaskSummary struct {
	Total          int64           `json:"total"`
	Completed      int64           `json:"completed"`
	Overdue        int64           `json:"overdue"`
	CompletionRate decimal.Decimal `json:"completion_rate"`
	EstimatedHours decimal.Decimal `json:"estimated_hours"`
	ActualHours    decimal.Decimal `json:"actual_hours"`
}

type TaskBreakdown struct {
	ByStatus   map[projectdomain.TaskStatus]int64   `json:"by_status"`
	ByPriority map[projectdomain.TaskPriority]int64 `json:"by_priority"`
}

type TaskStatisticsReport = Report[[]StatusCount, TaskSummary, TaskBreakdown]

type ProjectProgressRow struct {
	ProjectID       snowflake.ID                `json:"project_id"`
	Name            string                      `json:"name"`
	Status          projectdomain.ProjectStatus `json:"status"`
	TotalTasks      int64                       `json:"total_tasks"`
	CompletedTasks  int64                       `json:"completed_tasks"`
	CompletionRate  decimal.Decimal             `json:"completion_rate"`
	EstimatedHours  decimal.Decimal             `json:"estimated_hours"`
	ActualHours     decimal.Decimal             `json:"actual_hours"`
	HoursVariance   decimal.Decimal             `json:"hours_variance"`
	VariancePercent decimal.Decimal             `json:"variance_percent"`
	LoggedHours     decimal.Decimal             `json:"logged_hours"`
}

type ProjectProgressSummary struct {
	ProjectCount    int64           `json:"project_count"`
	TotalTasks      int64           `json:"total_tasks"`
	CompletedTasks  int64           `json:"completed_tasks"`
	CompletionRate  decimal.Decimal `json:"completion_rate"`
	EstimatedHours  decimal.Decimal `json:"estimated_hours"`
	ActualHours     decimal.Decimal `json:"actual_hours"`
	HoursVariance   decimal.Decimal `json:"hours_variance"`
	VariancePercent decimal.Decimal `json:"variance_percent"`
}

type ProjectStatusBreakdown struct {
	ByStatus map[projectdomain.ProjectStatus]int64 `json:"by_status"`
}

type ProjectProgressReport = Report[[]ProjectProgressRow, ProjectProgressSummary, ProjectStatusBreakdown]

type ProjectBudgetRow struct {
	ProjectID         snowflake.ID                `json:"project_id"`
	Name              string                      `json:"name"`
	Status            projectdomain.ProjectStatus `json:"status"`
	Budget            *decimal.Decimal            `json:"budget"`
	TotalHours        decimal.Decimal             `json:"total_hours"`
	BillableHours     decimal.Decimal             `json:"billable_hours"`
	BudgetUsed        decimal.Decimal             `json:"budget_used"`
	BudgetUtilization decimal.Decimal             `json:"budget_utilization"`
	// BudgetRemaining is nil without a budget and negative when over it.
	BudgetRemaining *decimal.Decimal `json:"budget_remaining"`
	OverBudget      bool             `json:"over_budget"`
}

// ProjectBudgetSummary sets budgeted spend against the budgets it draws on.
// Spend on projects without a budget is reported on its own.
type ProjectBudgetSummary struct {
	ProjectCount      int64           `json:"project_count"`
	TotalBudget       decimal.Decimal `json:"total_budget"`
	TotalUsed         decimal.Decimal `json:"total_used"`
	UnbudgetedUsed    decimal.Decimal `json:"unbudgeted_used"`
	BudgetUtilization decimal.Decimal `json:"budget_utilization"`
	BudgetRemaining   decimal.Decimal `json:"budget_remaining"`
	OverBudgetCount   int64           `json:"over_budget_count"`
}

// ProjectCost is one user's contribution to a project's budget use.
type ProjectCost struct {
	ProjectID  snowflake.ID    `json:"project_id"`
	UserID     snowflake.ID    `json:"user_id"`
	Hours      decimal.Decimal `json:"hours"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	RateSource string          `json:"rate_source"`
	Cost       decimal.Decimal `json:"cost"`
}

type ProjectBudgetBreakdown struct {
	Costs []ProjectCost `json:"costs"`
}

type ProjectBudgetReport = Report[[]ProjectBudgetRow, ProjectBudgetSummary, ProjectBudgetBreakdown]

type MemberUtilization struct {
	UserID             snowflake.ID    `json:"user_id"`
	FullName           string          `json:"full_name"`
	TotalMinutes       int64           `json:"total_minutes"`
	BillableMinutes    int64           `json:"billable_minutes"`
	NonBillableMinutes int64           `json:"non_billable_minutes"`
	EntryCount         int64           `json:"entry_count"`
	DaysWorked         int64           `json:"days_worked"`
	UtilizationRate    decimal.Decimal `json:"utilization_rate"`
	AverageHoursPerDay decimal.Decimal `json:"average_hours_per_day"`
	Hours
}

type TeamSummary struct {
	MemberCount        int64           `json:"member_count"`
	UtilizationRate    decimal.Decimal `json:"utilization_rate"`
	DaysWorked         int64           `json:"days_worked"`
	AverageHoursPerDay decimal.Decimal `json:"average_hours_per_day"`
	rollup.TimeTotals
	Hours
}

type TeamBreakdown struct {
	ByProject []ProjectHours `json:"by_project"`
}

type TeamUtilizationReport = Report[[]MemberUtilization, TeamSummary, TeamBreakdown]

type DailySummary struct {
	Days               int64           `json:"days"`
	AverageHoursPerDay decimal.Decimal `json:"average_hours_per_day"`
	rollup.TimeTotals
	Hours
}

type DailyBreakdown struct {
	Order rollup.Order `json:"order"`
}

type DailyTotalsReport = Report[[]DateHours, DailySummary, DailyBreakdown]

type InvoiceTotals struct {
	TotalCount       int64                                 `json:"total_count"`
	ByStatus         map[invoicedomain.InvoiceStatus]int64 `json:"by_status"`
	TotalInvoiced    decimal.Decimal                       `json:"total_invoiced"`
	TotalPaid        decimal.Decimal                       `json:"total_paid"`
	TotalOutstanding decimal.Decimal                       `json:"total_outstanding"`
	PaymentsReceived decimal.Decimal                       `json:"payments_received"`
}

type InvoiceBreakdown struct {
	Payments rollup.PaymentSummary `json:"payments"`
}

type InvoicesPaymentsReport = Report[[]rollup.InvoiceRow, InvoiceTotals, InvoiceBreakdown]

// Service assembles reports. Every report reads one snapshot and is
// scoped to the tenant in ctx.
type Service interface {
	TimeSummary(ctx context.Context, req TimeSummaryRequest) (*TimeSummaryReport, error)
	TaskStatistics(ctx context.Context, req TaskStatisticsRequest) (*TaskStatisticsReport, error)
	ProjectProgress(ctx context.Context, req ProjectRequest) (*ProjectProgressReport, error)
	ProjectBudget(ctx context.Context, req ProjectRequest) (*ProjectBudgetReport, error)
	TeamUtilization(ctx context.Context, req TimeFilterRequest) (*TeamUtilizationReport, error)
	DailyTotals(ctx context.Context, req DailyTotalsRequest) (*DailyTotalsReport, error)
	InvoicesPayments(ctx context.Context, req InvoiceRequest) (*InvoicesPaymentsReport, error)
}
