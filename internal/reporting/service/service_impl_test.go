package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workbook/internal/cache"
	"github.com/smallbiznis/workbook/internal/clock"
	"github.com/smallbiznis/workbook/internal/config"
	invoicedomain "github.com/smallbiznis/workbook/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	projectdomain "github.com/smallbiznis/workbook/internal/project/domain"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/smallbiznis/workbook/internal/reporting/rollup"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	tenantdomain "github.com/smallbiznis/workbook/internal/tenant/domain"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	timeentrydomain "github.com/smallbiznis/workbook/internal/timeentry/domain"
	userdomain "github.com/smallbiznis/workbook/internal/user/domain"
	"github.com/smallbiznis/workbook/pkg/civil"
	"github.com/smallbiznis/workbook/pkg/db"
	"github.com/smallbiznis/workbook/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type env struct {
	db      *gorm.DB
	node    *snowflake.Node
	svc     *Service
	tenant  snowflake.ID
	other   snowflake.ID
	userA   snowflake.ID
	userB   snowflake.ID
	project snowflake.ID
	ctx     context.Context

	// rows of the second tenant, seeded by every env
	foreignProject snowflake.ID
	outsider       snowflake.ID
}

func newEnv(t *testing.T, rates config.RatesConfig) *env {
	t.Helper()
	conn := db.NewTest(t,
		&timeentrydomain.TimeEntry{},
		&userdomain.User{},
		&userdomain.Membership{},
		&projectdomain.Project{},
		&projectdomain.Task{},
		&invoicedomain.Invoice{},
		&paymentdomain.Payment{},
		&tenantdomain.Settings{},
	)
	node, err := snowflake.NewNode(31)
	require.NoError(t, err)

	e := &env{
		db:      conn,
		node:    node,
		tenant:  node.Generate(),
		other:   node.Generate(),
		userA:   node.Generate(),
		userB:   node.Generate(),
		project: node.Generate(),

		foreignProject: node.Generate(),
		outsider:       node.Generate(),
	}
	e.ctx = tenantcontext.WithTenantID(context.Background(), e.tenant)
	e.svc = NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)),
		Rates: config.NewStaticRatesConfigHolder(rates),
	}).(*Service)

	require.NoError(t, conn.Create(&[]userdomain.User{
		{ID: e.userA, FullName: "Ada", Email: "ada@example.com"},
		{ID: e.userB, FullName: "Bo", Email: "bo@example.com"},
		{ID: e.outsider, FullName: "Cy", Email: "cy@example.com"},
	}).Error)
	require.NoError(t, conn.Create(&[]userdomain.Membership{
		{TenantID: e.tenant, UserID: e.userA, Role: tenantcontext.RoleMember},
		{TenantID: e.tenant, UserID: e.userB, Role: tenantcontext.RoleMember},
		{TenantID: e.other, UserID: e.outsider, Role: tenantcontext.RoleMember},
	}).Error)
	e.seedOtherTenant(t)
	return e
}

// seedOtherTenant gives the second tenant rows that overlap every report: a
// project with the same name, open and overdue tasks, and time logged on the
// same days by a shared user.
func (e *env) seedOtherTenant(t *testing.T) {
	t.Helper()
	budget := decimal.NewFromInt(10)
	e.projectWithBudget(t, e.other, e.foreignProject, "Website", &budget)

	due := civil.MustParseDate("2024-01-15")
	require.NoError(t, e.db.Create(&[]projectdomain.Task{
		{ID: e.node.Generate(), TenantID: e.other, ProjectID: e.foreignProject, Title: "x", Status: projectdomain.TaskStatusTodo, Priority: projectdomain.TaskPriorityHigh, DueDate: &due, EstimatedHours: decimal.NewFromInt(40), ActualHours: decimal.NewFromInt(80)},
		{ID: e.node.Generate(), TenantID: e.other, ProjectID: e.foreignProject, Title: "y", Status: projectdomain.TaskStatusDone, Priority: projectdomain.TaskPriorityLow, EstimatedHours: decimal.NewFromInt(5), ActualHours: decimal.NewFromInt(5)},
	}).Error)

	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"} {
		e.entry(t, e.other, e.foreignProject, e.userA, d, 480, true)
		e.entry(t, e.other, e.foreignProject, e.outsider, d, 300, false)
	}
}

func (e *env) projectWithBudget(t *testing.T, tenant snowflake.ID, id snowflake.ID, name string, budget *decimal.Decimal) {
	t.Helper()
	require.NoError(t, e.db.Create(&projectdomain.Project{
		ID: id, TenantID: tenant, Name: name, Status: projectdomain.ProjectStatusActive, Budget: budget,
	}).Error)
}

func (e *env) entry(t *testing.T, tenant, project, user snowflake.ID, day string, minutes int64, billable bool) {
	t.Helper()
	require.NoError(t, e.db.Create(&timeentrydomain.TimeEntry{
		ID:              e.node.Generate(),
		TenantID:        tenant,
		ProjectID:       project,
		UserID:          user,
		WorkDate:        civil.MustParseDate(day),
		DurationMinutes: minutes,
		Billable:        billable,
	}).Error)
}

func day(raw string) *civil.Date {
	d := civil.MustParseDate(raw)
	return &d
}

func TestTimeSummaryTwoUsers(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	e.projectWithBudget(t, e.tenant, e.project, "Website", nil)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-01", 120, true)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-01", 30, false)
	e.entry(t, e.tenant, e.project, e.userB, "2024-01-01", 90, true)

	foreignProject := e.node.Generate()
	e.projectWithBudget(t, e.other, foreignProject, "Website", nil)
	e.entry(t, e.other, foreignProject, e.userA, "2024-01-01", 999, true)

	report, err := e.svc.TimeSummary(e.ctx, reportingdomain.TimeSummaryRequest{})
	require.NoError(t, err)

	assert.Equal(t, int64(240), report.Summary.TotalMinutes)
	assert.Equal(t, int64(210), report.Summary.BillableMinutes)
	assert.Equal(t, "4", report.Summary.TotalHours.String())
	assert.Equal(t, "87.5", report.Summary.UtilizationRate.String())
	assert.Equal(t, int64(1), report.Summary.DaysWorked)
	assert.Len(t, report.Data, 3)

	minutes := map[snowflake.ID]int64{}
	for _, u := range report.Breakdown.ByUser {
		minutes[u.UserID] = u.TotalMinutes
	}
	assert.Equal(t, int64(150), minutes[e.userA])
	assert.Equal(t, int64(90), minutes[e.userB])
	require.Len(t, report.Breakdown.ByProject, 1)
	assert.Equal(t, int64(240), report.Breakdown.ByProject[0].TotalMinutes)
	assert.Equal(t, "2.5", report.Breakdown.ByUser[0].TotalHours.String())
}

func TestProjectBudgetOverBudget(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	budget := decimal.NewFromInt(1000)
	e.projectWithBudget(t, e.tenant, e.project, "Website", &budget)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-02", 900, true)
	e.entry(t, e.tenant, e.project, e.userB, "2024-01-03", 600, false)

	report, err := e.svc.ProjectBudget(e.ctx, reportingdomain.ProjectRequest{})
	require.NoError(t, err)
	require.Len(t, report.Data, 1)

	row := report.Data[0]
	assert.True(t, row.TotalHours.Equal(decimal.NewFromInt(25)))
	assert.True(t, row.BillableHours.Equal(decimal.NewFromInt(15)))
	assert.True(t, row.BudgetUsed.Equal(decimal.NewFromInt(1250)))
	assert.True(t, row.BudgetUtilization.Equal(decimal.NewFromInt(125)))
	require.NotNil(t, row.BudgetRemaining)
	assert.True(t, row.BudgetRemaining.Equal(decimal.NewFromInt(-250)))
	assert.True(t, row.OverBudget)
	assert.Equal(t, e.project, row.ProjectID)
	assert.Equal(t, int64(1), report.Summary.OverBudgetCount)
	assert.Equal(t, "1000", report.Summary.TotalBudget.String())
	assert.Len(t, report.Breakdown.Costs, 2)
	for _, c := range report.Breakdown.Costs {
		assert.NotEqual(t, e.foreignProject, c.ProjectID)
		assert.NotEqual(t, e.outsider, c.UserID)
	}
}

func TestProjectBudgetSummaryKeepsUnbudgetedSpendApart(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	budget := decimal.NewFromInt(1000)
	e.projectWithBudget(t, e.tenant, e.project, "Budgeted", &budget)
	open := e.node.Generate()
	e.projectWithBudget(t, e.tenant, open, "NoBudget", nil)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-02", 120, true)
	e.entry(t, e.tenant, open, e.userB, "2024-01-02", 6000, true)

	report, err := e.svc.ProjectBudget(e.ctx, reportingdomain.ProjectRequest{})
	require.NoError(t, err)
	require.Len(t, report.Data, 2)

	rows := map[snowflake.ID]reportingdomain.ProjectBudgetRow{}
	for _, r := range report.Data {
		rows[r.ProjectID] = r
	}
	require.NotNil(t, rows[e.project].BudgetRemaining)
	assert.Equal(t, "900", rows[e.project].BudgetRemaining.String())
	assert.False(t, rows[e.project].OverBudget)
	assert.Equal(t, "5000", rows[open].BudgetUsed.String())
	assert.Nil(t, rows[open].BudgetRemaining)

	summary := report.Summary
	assert.Equal(t, int64(2), summary.ProjectCount)
	assert.Equal(t, "1000", summary.TotalBudget.String())
	assert.Equal(t, "100", summary.TotalUsed.String())
	assert.Equal(t, "5000", summary.UnbudgetedUsed.String())
	assert.Equal(t, "10", summary.BudgetUtilization.String())
	assert.Equal(t, "900", summary.BudgetRemaining.String())
	assert.Zero(t, summary.OverBudgetCount)
}

func TestProjectBudgetUsesUserAndTenantRates(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	e.projectWithBudget(t, e.tenant, e.project, "Website", nil)
	userRate := decimal.NewFromInt(80)
	tenantRate := decimal.NewFromInt(60)
	require.NoError(t, e.db.Model(&userdomain.User{}).Where("id = ?", e.userA).Update("hourly_rate", userRate).Error)
	require.NoError(t, e.db.Create(&tenantdomain.Settings{TenantID: e.tenant, DefaultHourlyRate: &tenantRate, Currency: "USD"}).Error)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-02", 60, true)
	e.entry(t, e.tenant, e.project, e.userB, "2024-01-02", 60, true)

	report, err := e.svc.ProjectBudget(e.ctx, reportingdomain.ProjectRequest{})
	require.NoError(t, err)
	require.Len(t, report.Data, 1)
	assert.True(t, report.Data[0].BudgetUsed.Equal(decimal.NewFromInt(140)))
	assert.Nil(t, report.Data[0].BudgetRemaining)
	assert.True(t, report.Data[0].BudgetUtilization.IsZero())
	assert.True(t, report.Summary.TotalBudget.IsZero())
	assert.Equal(t, "140", report.Summary.UnbudgetedUsed.String())
}

func TestTaskStatisticsEmptyProject(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	e.projectWithBudget(t, e.tenant, e.project, "Empty", nil)

	report, err := e.svc.TaskStatistics(e.ctx, reportingdomain.TaskStatisticsRequest{ProjectID: &e.project})
	require.NoError(t, err)
	assert.Zero(t, report.Summary.Total)
	assert.Zero(t, report.Summary.Completed)
	assert.True(t, report.Summary.CompletionRate.IsZero())
	assert.Len(t, report.Data, len(projectdomain.TaskStatuses))

	foreign, err := e.svc.TaskStatistics(e.ctx, reportingdomain.TaskStatisticsRequest{ProjectID: &e.foreignProject})
	require.NoError(t, err)
	assert.Zero(t, foreign.Summary.Total)
	assert.Zero(t, foreign.Summary.Overdue)
}

func TestTaskStatisticsCountsOverdueAgainstClock(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	e.projectWithBudget(t, e.tenant, e.project, "Website", nil)
	due := civil.MustParseDate("2024-01-31")
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.db.Create(&[]projectdomain.Task{
		{ID: e.node.Generate(), TenantID: e.tenant, ProjectID: e.project, Title: "a", Status: projectdomain.TaskStatusDone, Priority: projectdomain.TaskPriorityHigh, DueDate: &due, CreatedAt: created},
		{ID: e.node.Generate(), TenantID: e.tenant, ProjectID: e.project, Title: "b", Status: projectdomain.TaskStatusReview, Priority: projectdomain.TaskPriorityHigh, DueDate: &due, CreatedAt: created},
		{ID: e.node.Generate(), TenantID: e.tenant, ProjectID: e.project, Title: "c", Status: projectdomain.TaskStatusTodo, Priority: projectdomain.TaskPriorityLow, CreatedAt: created},
		{ID: e.node.Generate(), TenantID: e.tenant, ProjectID: e.project, Title: "d", Status: projectdomain.TaskStatusDone, Priority: projectdomain.TaskPriorityLow, CreatedAt: created},
	}).Error)

	report, err := e.svc.TaskStatistics(e.ctx, reportingdomain.TaskStatisticsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), report.Summary.Total)
	assert.Equal(t, int64(2), report.Summary.Completed)
	assert.Equal(t, int64(1), report.Summary.Overdue)
	assert.True(t, report.Summary.CompletionRate.Equal(decimal.NewFromInt(50)))
	assert.True(t, report.Summary.EstimatedHours.IsZero())
	assert.True(t, report.Summary.ActualHours.IsZero())
	assert.Equal(t, int64(2), report.Breakdown.ByPriority[projectdomain.TaskPriorityHigh])
	assert.Equal(t, int64(1), report.Breakdown.ByStatus[projectdomain.TaskStatusTodo])
}

func TestTaskStatisticsCacheKeyFollowsToday(t *testing.T) {
	tenant := snowflake.ID(100)
	req := reportingdomain.TaskStatisticsRequest{}

	first, err := cache.Key(tenant, reportingdomain.ReportTaskStatistics, taskStatisticsCacheKey{TaskStatisticsRequest: req, Today: civil.MustParseDate("2024-02-01")})
	require.NoError(t, err)
	again, err := cache.Key(tenant, reportingdomain.ReportTaskStatistics, taskStatisticsCacheKey{TaskStatisticsRequest: req, Today: civil.MustParseDate("2024-02-01")})
	require.NoError(t, err)
	next, err := cache.Key(tenant, reportingdomain.ReportTaskStatistics, taskStatisticsCacheKey{TaskStatisticsRequest: req, Today: civil.MustParseDate("2024-02-02")})
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, next)
}

func TestProjectProgressVariance(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	e.projectWithBudget(t, e.tenant, e.project, "Website", nil)
	idle := e.node.Generate()
	e.projectWithBudget(t, e.tenant, idle, "Idle", nil)
	require.NoError(t, e.db.Create(&[]projectdomain.Task{
		{ID: e.node.Generate(), TenantID: e.tenant, ProjectID: e.project, Title: "a", Status: projectdomain.TaskStatusDone, Priority: projectdomain.TaskPriorityHigh, EstimatedHours: decimal.NewFromInt(10), ActualHours: decimal.NewFromInt(12)},
		{ID: e.node.Generate(), TenantID: e.tenant, ProjectID: e.project, Title: "b", Status: projectdomain.TaskStatusTodo, Priority: projectdomain.TaskPriorityLow, EstimatedHours: decimal.NewFromInt(10), ActualHours: decimal.NewFromInt(3)},
	}).Error)

	report, err := e.svc.ProjectProgress(e.ctx, reportingdomain.ProjectRequest{})
	require.NoError(t, err)
	require.Len(t, report.Data, 2)

	rows := map[snowflake.ID]reportingdomain.ProjectProgressRow{}
	for _, r := range report.Data {
		rows[r.ProjectID] = r
	}
	busy := rows[e.project]
	assert.True(t, busy.CompletionRate.Equal(decimal.NewFromInt(50)))
	assert.True(t, busy.HoursVariance.Equal(decimal.NewFromInt(-5)))
	assert.True(t, busy.VariancePercent.Equal(decimal.NewFromInt(-25)))
	assert.True(t, rows[idle].VariancePercent.IsZero())
	assert.True(t, rows[idle].CompletionRate.IsZero())
	assert.Equal(t, int64(2), report.Breakdown.ByStatus[projectdomain.ProjectStatusActive])
	assert.NotContains(t, rows, e.foreignProject)
	assert.Equal(t, int64(2), report.Summary.TotalTasks)
	assert.Equal(t, "20", report.Summary.EstimatedHours.String())
	assert.Equal(t, "15", report.Summary.ActualHours.String())

	_, err = e.svc.ProjectProgress(e.ctx, reportingdomain.ProjectRequest{Status: "frozen"})
	assert.ErrorIs(t, err, reportingdomain.ErrInvalidStatus)
}

func TestDailyTotalsOrder(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	e.projectWithBudget(t, e.tenant, e.project, "Website", nil)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-03", 60, true)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-01", 30, true)
	e.entry(t, e.tenant, e.project, e.userB, "2024-01-02", 45, false)

	asc, err := e.svc.DailyTotals(e.ctx, reportingdomain.DailyTotalsRequest{})
	require.NoError(t, err)
	require.Len(t, asc.Data, 3)
	assert.Equal(t, civil.Date("2024-01-01"), asc.Data[0].WorkDate)
	assert.Equal(t, rollup.OrderAsc, asc.Breakdown.Order)
	assert.Equal(t, int64(3), asc.Summary.Days)
	assert.Equal(t, int64(135), asc.Summary.TotalMinutes)
	for _, d := range asc.Data {
		assert.NotEqual(t, civil.Date("2024-01-04"), d.WorkDate)
	}
	assert.Equal(t, "0.75", asc.Summary.AverageHoursPerDay.String())

	desc, err := e.svc.DailyTotals(e.ctx, reportingdomain.DailyTotalsRequest{Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, civil.Date("2024-01-03"), desc.Data[0].WorkDate)

	_, err = e.svc.DailyTotals(e.ctx, reportingdomain.DailyTotalsRequest{Order: "random"})
	assert.ErrorIs(t, err, rollup.ErrInvalidOrder)

	descDefault := config.DefaultRatesConfig()
	descDefault.DailyTotalsOrder = "desc"
	e.svc.rates = config.NewStaticRatesConfigHolder(descDefault)
	flipped, err := e.svc.DailyTotals(e.ctx, reportingdomain.DailyTotalsRequest{})
	require.NoError(t, err)
	assert.Equal(t, civil.Date("2024-01-03"), flipped.Data[0].WorkDate)
}

func TestTeamUtilization(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	e.projectWithBudget(t, e.tenant, e.project, "Website", nil)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-01", 240, true)
	e.entry(t, e.tenant, e.project, e.userA, "2024-01-02", 240, false)
	e.entry(t, e.tenant, e.project, e.userB, "2024-01-02", 120, true)

	report, err := e.svc.TeamUtilization(e.ctx, reportingdomain.TimeFilterRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Summary.MemberCount)
	assert.Equal(t, int64(2), report.Summary.DaysWorked)
	assert.Equal(t, "60", report.Summary.UtilizationRate.String())

	var ada reportingdomain.MemberUtilization
	for _, m := range report.Data {
		if m.UserID == e.userA {
			ada = m
		}
	}
	for _, m := range report.Data {
		assert.NotEqual(t, e.outsider, m.UserID)
	}
	assert.Equal(t, "50", ada.UtilizationRate.String())
	assert.Equal(t, "4", ada.AverageHoursPerDay.String())
	assert.Equal(t, int64(2), ada.DaysWorked)
	assert.Equal(t, int64(480), ada.TotalMinutes)
}

func TestInvoicesPayments(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())
	invoiceID := e.node.Generate()
	require.NoError(t, e.db.Create(&[]invoicedomain.Invoice{
		{ID: invoiceID, TenantID: e.tenant, Number: "INV-1", Status: invoicedomain.InvoiceStatusSent, IssueDate: "2024-01-05", TotalAmount: decimal.NewFromInt(500), AmountPaid: decimal.NewFromInt(400)},
		{ID: e.node.Generate(), TenantID: e.tenant, Number: "INV-2", Status: invoicedomain.InvoiceStatusDraft, IssueDate: "2024-01-06", TotalAmount: decimal.RequireFromString("99.995")},
		{ID: e.node.Generate(), TenantID: e.other, Number: "INV-9", Status: invoicedomain.InvoiceStatusSent, IssueDate: "2024-01-05", TotalAmount: decimal.NewFromInt(7000)},
	}).Error)
	require.NoError(t, e.db.Create(&[]paymentdomain.Payment{
		{ID: e.node.Generate(), TenantID: e.tenant, InvoiceID: &invoiceID, UserID: e.userA, Amount: decimal.NewFromInt(200), NetAmount: decimal.NewFromInt(200), Status: paymentdomain.PaymentStatusCompleted, PaymentDate: "2024-01-07", Method: "card"},
		{ID: e.node.Generate(), TenantID: e.tenant, InvoiceID: &invoiceID, UserID: e.userA, Amount: decimal.NewFromInt(200), NetAmount: decimal.NewFromInt(200), Status: paymentdomain.PaymentStatusCompleted, PaymentDate: "2024-01-08", Method: "card"},
	}).Error)

	report, err := e.svc.InvoicesPayments(e.ctx, reportingdomain.InvoiceRequest{})
	require.NoError(t, err)
	require.Len(t, report.Data, 2)
	assert.Equal(t, int64(2), report.Summary.TotalCount)
	assert.Equal(t, int64(1), report.Summary.ByStatus[invoicedomain.InvoiceStatusSent])
	assert.Equal(t, "600", report.Summary.TotalInvoiced.String())
	assert.Equal(t, "400", report.Summary.TotalPaid.String())
	assert.Equal(t, "200", report.Summary.TotalOutstanding.String())
	assert.Equal(t, "400", report.Summary.PaymentsReceived.String())
	assert.Equal(t, int64(2), report.Breakdown.Payments.ByStatus[paymentdomain.PaymentStatusCompleted].Count)

	_, err = e.svc.InvoicesPayments(e.ctx, reportingdomain.InvoiceRequest{Status: "void"})
	assert.ErrorIs(t, err, reportingdomain.ErrInvalidStatus)
}

func TestReportsRequireTenantAndValidFilters(t *testing.T) {
	e := newEnv(t, config.DefaultRatesConfig())

	_, err := e.svc.TimeSummary(context.Background(), reportingdomain.TimeSummaryRequest{})
	assert.ErrorIs(t, err, scope.ErrMissingTenant)

	_, err = e.svc.TeamUtilization(e.ctx, reportingdomain.TimeFilterRequest{StartDate: day("2024-02-01"), EndDate: day("2024-01-01")})
	assert.ErrorIs(t, err, scope.ErrInvalidRange)

	_, err = e.svc.TimeSummary(e.ctx, reportingdomain.TimeSummaryRequest{Limit: -1})
	assert.ErrorIs(t, err, validation.ErrValidation)
}

func TestReportTimeoutFailsWholeRequest(t *testing.T) {
	rates := config.DefaultRatesConfig()
	rates.ReportTimeout = time.Nanosecond
	e := newEnv(t, rates)

	_, err := e.svc.TimeSummary(e.ctx, reportingdomain.TimeSummaryRequest{})
	assert.ErrorIs(t, err, reportingdomain.ErrReportTimeout)
}
