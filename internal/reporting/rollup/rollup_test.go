package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/workbook/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	projectdomain "github.com/smallbiznis/workbook/internal/project/domain"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	tenantdomain "github.com/smallbiznis/workbook/internal/tenant/domain"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	timeentrydomain "github.com/smallbiznis/workbook/internal/timeentry/domain"
	userdomain "github.com/smallbiznis/workbook/internal/user/domain"
	"github.com/smallbiznis/workbook/pkg/civil"
	"github.com/smallbiznis/workbook/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	tenant  snowflake.ID
	other   snowflake.ID
	userA   snowflake.ID
	userB   snowflake.ID
	project snowflake.ID
}

func newFixture(t *testing.T) *fixture {
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
	node, err := snowflake.NewNode(11)
	require.NoError(t, err)

	fx := &fixture{
		db:      conn,
		node:    node,
		tenant:  node.Generate(),
		other:   node.Generate(),
		userA:   node.Generate(),
		userB:   node.Generate(),
		project: node.Generate(),
	}
	require.NoError(t, conn.Create(&[]userdomain.User{
		{ID: fx.userA, FullName: "Ada", Email: "ada@example.com"},
		{ID: fx.userB, FullName: "Bo", Email: "bo@example.com"},
	}).Error)
	require.NoError(t, conn.Create(&[]userdomain.Membership{
		{TenantID: fx.tenant, UserID: fx.userA, Role: tenantcontext.RoleMember},
		{TenantID: fx.tenant, UserID: fx.userB, Role: tenantcontext.RoleMember},
	}).Error)
	require.NoError(t, conn.Create(&projectdomain.Project{
		ID: fx.project, TenantID: fx.tenant, Name: "Website", Status: projectdomain.ProjectStatusActive,
	}).Error)
	return fx
}

func (fx *fixture) entry(t *testing.T, tenant, user snowflake.ID, day string, minutes int64, billable bool) {
	t.Helper()
	require.NoError(t, fx.db.Create(&timeentrydomain.TimeEntry{
		ID:              fx.node.Generate(),
		TenantID:        tenant,
		ProjectID:       fx.project,
		UserID:          user,
		WorkDate:        civil.MustParseDate(day),
		DurationMinutes: minutes,
		Billable:        billable,
	}).Error)
}

func (fx *fixture) filter(t *testing.T, p scope.Params) scope.Filter {
	t.Helper()
	f, err := scope.New(tenantcontext.WithTenantID(context.Background(), fx.tenant), p)
	require.NoError(t, err)
	return f
}

func TestTwoUsersOneProject(t *testing.T) {
	fx := newFixture(t)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-01", 120, true)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-01", 30, false)
	fx.entry(t, fx.tenant, fx.userB, "2024-01-01", 90, true)
	fx.entry(t, fx.other, fx.userB, "2024-01-01", 600, true)

	ctx := context.Background()
	f := fx.filter(t, scope.Params{})

	users, err := ByUser(ctx, fx.db, f)
	require.NoError(t, err)
	require.Len(t, users, 2)
	byID := map[snowflake.ID]UserTime{}
	for _, u := range users {
		byID[u.UserID] = u
	}
	assert.Equal(t, int64(150), byID[fx.userA].TotalMinutes)
	assert.Equal(t, int64(120), byID[fx.userA].BillableMinutes)
	assert.Equal(t, int64(30), byID[fx.userA].NonBillableMinutes)
	assert.Equal(t, "Ada", byID[fx.userA].FullName)
	assert.Equal(t, int64(1), byID[fx.userA].DaysWorked)
	assert.Equal(t, int64(90), byID[fx.userB].TotalMinutes)

	projects, err := ByProject(ctx, fx.db, f)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, int64(240), projects[0].TotalMinutes)
	assert.Equal(t, "Website", projects[0].ProjectName)

	totals, days, err := Totals(ctx, fx.db, f)
	require.NoError(t, err)
	assert.Equal(t, int64(240), totals.TotalMinutes)
	assert.Equal(t, int64(210), totals.BillableMinutes)
	assert.Equal(t, int64(30), totals.NonBillableMinutes)
	assert.Equal(t, int64(3), totals.EntryCount)
	assert.Equal(t, int64(1), days)

	dates, err := ByDate(ctx, fx.db, f, OrderAsc)
	require.NoError(t, err)

	assert.NoError(t, CheckTimeConsistency(TimeRollups{
		ByUser:    users,
		ByProject: projects,
		ByDate:    dates,
		Totals:    totals,
	}))
}

func TestGroupingsSumToTotalsAcrossDays(t *testing.T) {
	fx := newFixture(t)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-01", 45, true)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-02", 15, false)
	fx.entry(t, fx.tenant, fx.userB, "2024-01-03", 60, true)
	fx.entry(t, fx.tenant, fx.userB, "2024-01-09", 600, true)

	ctx := context.Background()
	start := civil.MustParseDate("2024-01-01")
	end := civil.MustParseDate("2024-01-07")
	f := fx.filter(t, scope.Params{StartDate: &start, EndDate: &end})

	users, err := ByUser(ctx, fx.db, f)
	require.NoError(t, err)
	projects, err := ByProject(ctx, fx.db, f)
	require.NoError(t, err)
	asc, err := ByDate(ctx, fx.db, f, OrderAsc)
	require.NoError(t, err)
	desc, err := ByDate(ctx, fx.db, f, OrderDesc)
	require.NoError(t, err)
	totals, days, err := Totals(ctx, fx.db, f)
	require.NoError(t, err)

	assert.Equal(t, int64(120), totals.TotalMinutes)
	assert.Equal(t, int64(3), days)
	require.Len(t, asc, 3)
	assert.Equal(t, civil.Date("2024-01-01"), asc[0].WorkDate)
	assert.Equal(t, civil.Date("2024-01-03"), desc[0].WorkDate)

	assert.NoError(t, CheckTimeConsistency(TimeRollups{ByUser: users, ByProject: projects, ByDate: asc, Totals: totals}))
}

func TestBillableFilterNarrowsEveryRollup(t *testing.T) {
	fx := newFixture(t)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-01", 120, true)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-01", 30, false)

	billable := false
	f := fx.filter(t, scope.Params{Billable: &billable})

	totals, _, err := Totals(context.Background(), fx.db, f)
	require.NoError(t, err)
	assert.Equal(t, int64(30), totals.TotalMinutes)
	assert.Zero(t, totals.BillableMinutes)
}

func TestZeroRowsYieldZerosNotNulls(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.filter(t, scope.Params{})

	users, err := ByUser(ctx, fx.db, f)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	totals, days, err := Totals(ctx, fx.db, f)
	require.NoError(t, err)
	assert.Equal(t, TimeTotals{}, totals)
	assert.Zero(t, days)

	entries, err := Entries(ctx, fx.db, f, 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)

	counts, err := Tasks(ctx, fx.db, f, civil.MustParseDate("2024-01-01"))
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
	assert.Len(t, counts.ByStatus, len(projectdomain.TaskStatuses))
	assert.True(t, counts.EstimatedHours.IsZero())

	rows, summary, err := Invoices(ctx, fx.db, f, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.True(t, summary.TotalOutstanding.IsZero())
}

func TestUnscopedFilterIsRejected(t *testing.T) {
	fx := newFixture(t)
	_, err := ByUser(context.Background(), fx.db, scope.Filter{})
	assert.ErrorIs(t, err, ErrUnscopedFilter)
	_, _, err = Invoices(context.Background(), fx.db, scope.Filter{}, "")
	assert.ErrorIs(t, err, ErrUnscopedFilter)
}

func TestEntriesNewestFirst(t *testing.T) {
	fx := newFixture(t)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-01", 10, true)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-03", 20, true)
	fx.entry(t, fx.tenant, fx.userA, "2024-01-02", 30, true)

	rows, err := Entries(context.Background(), fx.db, fx.filter(t, scope.Params{}), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, civil.Date("2024-01-03"), rows[0].WorkDate)
	assert.Equal(t, civil.Date("2024-01-02"), rows[1].WorkDate)
	assert.Equal(t, "Website", rows[0].ProjectName)
}

func TestTasksCountsAndOverdue(t *testing.T) {
	fx := newFixture(t)
	past := civil.MustParseDate("2024-01-05")
	future := civil.MustParseDate("2024-03-01")
	created := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	tasks := []projectdomain.Task{
		{ID: fx.node.Generate(), TenantID: fx.tenant, ProjectID: fx.project, Title: "a", Status: projectdomain.TaskStatusDone, Priority: projectdomain.TaskPriorityHigh, DueDate: &past, EstimatedHours: decimal.NewFromInt(4), ActualHours: decimal.NewFromInt(5), CreatedAt: created},
		{ID: fx.node.Generate(), TenantID: fx.tenant, ProjectID: fx.project, Title: "b", Status: projectdomain.TaskStatusTodo, Priority: projectdomain.TaskPriorityLow, DueDate: &past, EstimatedHours: decimal.NewFromInt(2), ActualHours: decimal.Zero, CreatedAt: created},
		{ID: fx.node.Generate(), TenantID: fx.tenant, ProjectID: fx.project, Title: "c", Status: projectdomain.TaskStatusInProgress, Priority: projectdomain.TaskPriorityLow, DueDate: &future, EstimatedHours: decimal.NewFromInt(3), ActualHours: decimal.NewFromInt(1), CreatedAt: created},
		{ID: fx.node.Generate(), TenantID: fx.other, ProjectID: fx.project, Title: "d", Status: projectdomain.TaskStatusDone, Priority: projectdomain.TaskPriorityUrgent, CreatedAt: created},
	}
	require.NoError(t, fx.db.Create(&tasks).Error)

	counts, err := Tasks(context.Background(), fx.db, fx.filter(t, scope.Params{}), civil.MustParseDate("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(1), counts.Completed)
	assert.Equal(t, int64(1), counts.Overdue)
	assert.Equal(t, int64(2), counts.ByPriority[projectdomain.TaskPriorityLow])
	assert.Equal(t, int64(0), counts.ByPriority[projectdomain.TaskPriorityUrgent])
	assert.Equal(t, int64(1), counts.ByStatus[projectdomain.TaskStatusTodo])
	assert.True(t, counts.EstimatedHours.Equal(decimal.NewFromInt(9)))
	assert.True(t, counts.ActualHours.Equal(decimal.NewFromInt(6)))

	perProject, err := TasksByProject(context.Background(), fx.db, fx.filter(t, scope.Params{}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), perProject[fx.project].Total)
	assert.Equal(t, int64(1), perProject[fx.project].Completed)
}

func TestInvoiceSummaryMatchesRows(t *testing.T) {
	fx := newFixture(t)
	invoices := []invoicedomain.Invoice{
		{ID: fx.node.Generate(), TenantID: fx.tenant, Number: "INV-1", Status: invoicedomain.InvoiceStatusSent, IssueDate: "2024-01-03", TotalAmount: decimal.NewFromInt(500), AmountPaid: decimal.NewFromInt(400)},
		{ID: fx.node.Generate(), TenantID: fx.tenant, Number: "INV-2", Status: invoicedomain.InvoiceStatusPaid, IssueDate: "2024-01-10", TotalAmount: decimal.NewFromInt(250), AmountPaid: decimal.NewFromInt(250)},
		{ID: fx.node.Generate(), TenantID: fx.other, Number: "INV-X", Status: invoicedomain.InvoiceStatusSent, IssueDate: "2024-01-03", TotalAmount: decimal.NewFromInt(9000)},
	}
	require.NoError(t, fx.db.Create(&invoices).Error)

	rows, summary, err := Invoices(context.Background(), fx.db, fx.filter(t, scope.Params{}), "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "INV-2", rows[0].Number)
	assert.True(t, rows[1].BalanceDue.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, int64(2), summary.TotalCount)
	assert.Equal(t, int64(1), summary.ByStatus[invoicedomain.InvoiceStatusSent])
	assert.Equal(t, int64(0), summary.ByStatus[invoicedomain.InvoiceStatusDraft])
	assert.True(t, summary.TotalInvoiced.Equal(decimal.NewFromInt(750)))
	assert.True(t, summary.TotalPaid.Equal(decimal.NewFromInt(650)))
	assert.True(t, summary.TotalOutstanding.Equal(decimal.NewFromInt(100)))

	sent, sentSummary, err := Invoices(context.Background(), fx.db, fx.filter(t, scope.Params{}), invoicedomain.InvoiceStatusSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, int64(1), sentSummary.TotalCount)
	assert.True(t, sentSummary.TotalInvoiced.Equal(decimal.NewFromInt(500)))
}

func TestPaymentsGroupedByStatus(t *testing.T) {
	fx := newFixture(t)
	payments := []paymentdomain.Payment{
		{ID: fx.node.Generate(), TenantID: fx.tenant, UserID: fx.userA, Amount: decimal.NewFromInt(200), FeeAmount: decimal.NewFromInt(2), NetAmount: decimal.NewFromInt(198), Status: paymentdomain.PaymentStatusCompleted, PaymentDate: "2024-01-04", Method: "bank_transfer"},
		{ID: fx.node.Generate(), TenantID: fx.tenant, UserID: fx.userA, Amount: decimal.NewFromInt(50), FeeAmount: decimal.Zero, NetAmount: decimal.NewFromInt(50), Status: paymentdomain.PaymentStatusPending, PaymentDate: "2024-01-05", Method: "card"},
		{ID: fx.node.Generate(), TenantID: fx.other, UserID: fx.userA, Amount: decimal.NewFromInt(70), FeeAmount: decimal.Zero, NetAmount: decimal.NewFromInt(70), Status: paymentdomain.PaymentStatusCompleted, PaymentDate: "2024-01-05", Method: "card"},
	}
	require.NoError(t, fx.db.Create(&payments).Error)

	summary, err := Payments(context.Background(), fx.db, fx.filter(t, scope.Params{}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalCount)
	assert.True(t, summary.Received.Equal(decimal.NewFromInt(200)))
	assert.True(t, summary.ByStatus[paymentdomain.PaymentStatusCompleted].NetAmount.Equal(decimal.NewFromInt(198)))
	assert.Equal(t, int64(0), summary.ByStatus[paymentdomain.PaymentStatusRefunded].Count)
}

func TestRatesOnlyReadTenantMembers(t *testing.T) {
	fx := newFixture(t)
	rate := decimal.NewFromInt(40)
	tenantRate := decimal.NewFromInt(65)
	outsider := fx.node.Generate()
	require.NoError(t, fx.db.Model(&userdomain.User{}).Where("id = ?", fx.userA).Update("hourly_rate", rate).Error)
	require.NoError(t, fx.db.Create(&userdomain.User{ID: outsider, FullName: "Eve", Email: "eve@example.com", HourlyRate: &rate}).Error)
	require.NoError(t, fx.db.Create(&tenantdomain.Settings{TenantID: fx.tenant, DefaultHourlyRate: &tenantRate, Currency: "USD"}).Error)

	rates, err := Rates(context.Background(), fx.db, fx.filter(t, scope.Params{}))
	require.NoError(t, err)
	require.NotNil(t, rates.TenantDefault)
	assert.True(t, rates.TenantDefault.Equal(tenantRate))
	require.NotNil(t, rates.UserRates[fx.userA])
	assert.True(t, rates.UserRates[fx.userA].Equal(rate))
	assert.Nil(t, rates.UserRates[fx.userB])
	_, seen := rates.UserRates[outsider]
	assert.False(t, seen)
}

func TestProjectsFilteredByStatus(t *testing.T) {
	fx := newFixture(t)
	budget := decimal.NewFromInt(1000)
	require.NoError(t, fx.db.Create(&projectdomain.Project{
		ID: fx.node.Generate(), TenantID: fx.tenant, Name: "Old", Status: projectdomain.ProjectStatusArchived, Budget: &budget,
	}).Error)

	all, err := Projects(context.Background(), fx.db, fx.filter(t, scope.Params{}), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := Projects(context.Background(), fx.db, fx.filter(t, scope.Params{}), projectdomain.ProjectStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, fx.project, active[0].ID)
	assert.Nil(t, active[0].Budget)
}

func TestCheckTimeConsistencyDetectsDrift(t *testing.T) {
	totals := TimeTotals{TotalMinutes: 100, BillableMinutes: 60, NonBillableMinutes: 40, EntryCount: 2}
	err := CheckTimeConsistency(TimeRollups{
		ByUser: []UserTime{{TimeTotals: TimeTotals{TotalMinutes: 90, BillableMinutes: 50, NonBillableMinutes: 40, EntryCount: 2}}},
		Totals: totals,
	})
	assert.ErrorIs(t, err, ErrInconsistentRollup)

	err = CheckTimeConsistency(TimeRollups{Totals: TimeTotals{TotalMinutes: 10, BillableMinutes: 3, NonBillableMinutes: 3}})
	assert.ErrorIs(t, err, ErrInconsistentRollup)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder(" DESC ")
	require.NoError(t, err)
	assert.Equal(t, OrderDesc, o)
	_, err = ParseOrder("sideways")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}
