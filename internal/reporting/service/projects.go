package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/workbook/internal/invoice/domain"
	projectdomain "github.com/smallbiznis/workbook/internal/project/domain"
	"github.com/smallbiznis/workbook/internal/reporting/calc"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/smallbiznis/workbook/internal/reporting/rollup"
	"github.com/smallbiznis/workbook/pkg/civil"
	"gorm.io/gorm"
)

// taskStatisticsCacheKey ties cached statistics to the day overdue tasks were
// counted against.
type taskStatisticsCacheKey struct {
	reportingdomain.TaskStatisticsRequest
	Today civil.Date `json:"today"`
}

func (s *Service) TaskStatistics(ctx context.Context, req reportingdomain.TaskStatisticsRequest) (*reportingdomain.TaskStatisticsReport, error) {
	f, err := prepare(ctx, req, req.Params())
	if err != nil {
		return nil, err
	}
	today := civil.DateOf(s.clock.Now())

	var out reportingdomain.TaskStatisticsReport
	key := taskStatisticsCacheKey{TaskStatisticsRequest: req, Today: today}
	err = s.run(ctx, reportingdomain.ReportTaskStatistics, f, key, &out, func(ctx context.Context, tx *gorm.DB) error {
		counts, err := rollup.Tasks(ctx, tx, f, today)
		if err != nil {
			return err
		}

		data := make([]reportingdomain.StatusCount, 0, len(projectdomain.TaskStatuses))
		for _, status := range projectdomain.TaskStatuses {
			data = append(data, reportingdomain.StatusCount{Status: string(status), Count: counts.ByStatus[status]})
		}
		out = reportingdomain.TaskStatisticsReport{
			Data: data,
			Summary: reportingdomain.TaskSummary{
				Total:          counts.Total,
				Completed:      counts.Completed,
				Overdue:        counts.Overdue,
				CompletionRate: calc.Display(calc.CompletionRate(counts.Completed, counts.Total)),
				EstimatedHours: calc.Display(counts.EstimatedHours),
				ActualHours:    calc.Display(counts.ActualHours),
			},
			Breakdown: reportingdomain.TaskBreakdown{
				ByStatus:   counts.ByStatus,
				ByPriority: counts.ByPriority,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func parseProjectStatus(raw string) (projectdomain.ProjectStatus, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	status, ok := projectdomain.ParseProjectStatus(raw)
	if !ok {
		return "", reportingdomain.ErrInvalidStatus
	}
	return status, nil
}

// ProjectProgress compares task estimates with task actuals per project.
// Logged hours come from time entries and are reported alongside.
func (s *Service) ProjectProgress(ctx context.Context, req reportingdomain.ProjectRequest) (*reportingdomain.ProjectProgressReport, error) {
	status, err := parseProjectStatus(req.Status)
	if err != nil {
		return nil, err
	}
	f, err := prepare(ctx, req, req.Params())
	if err != nil {
		return nil, err
	}

	var out reportingdomain.ProjectProgressReport
	err = s.run(ctx, reportingdomain.ReportProjectProgress, f, req, &out, func(ctx context.Context, tx *gorm.DB) error {
		projects, err := rollup.Projects(ctx, tx, f, status)
		if err != nil {
			return err
		}
		tasks, err := rollup.TasksByProject(ctx, tx, f)
		if err != nil {
			return err
		}
		logged, err := rollup.ByProject(ctx, tx, f)
		if err != nil {
			return err
		}
		loggedMinutes := make(map[snowflake.ID]int64, len(logged))
		for _, p := range logged {
			loggedMinutes[p.ProjectID] = p.TotalMinutes
		}

		byStatus := make(map[projectdomain.ProjectStatus]int64, len(projectdomain.ProjectStatuses))
		for _, st := range projectdomain.ProjectStatuses {
			byStatus[st] = 0
		}

		var summary reportingdomain.ProjectProgressSummary
		estimated, actual := decimal.Zero, decimal.Zero
		rows := make([]reportingdomain.ProjectProgressRow, 0, len(projects))
		for _, p := range projects {
			t := tasks[p.ID]
			est, act := t.EstimatedHours, t.ActualHours
			rows = append(rows, reportingdomain.ProjectProgressRow{
				ProjectID:       p.ID,
				Name:            p.Name,
				Status:          p.Status,
				TotalTasks:      t.Total,
				CompletedTasks:  t.Completed,
				CompletionRate:  calc.Display(calc.CompletionRate(t.Completed, t.Total)),
				EstimatedHours:  calc.Display(est),
				ActualHours:     calc.Display(act),
				HoursVariance:   calc.Display(calc.HoursVariance(act, est)),
				VariancePercent: calc.Display(calc.VariancePercent(act, est)),
				LoggedHours:     calc.Display(calc.Hours(loggedMinutes[p.ID])),
			})
			byStatus[p.Status]++
			summary.ProjectCount++
			summary.TotalTasks += t.Total
			summary.CompletedTasks += t.Completed
			estimated = estimated.Add(est)
			actual = actual.Add(act)
		}

		summary.CompletionRate = calc.Display(calc.CompletionRate(summary.CompletedTasks, summary.TotalTasks))
		summary.EstimatedHours = calc.Display(estimated)
		summary.ActualHours = calc.Display(actual)
		summary.HoursVariance = calc.Display(calc.HoursVariance(actual, estimated))
		summary.VariancePercent = calc.Display(calc.VariancePercent(actual, estimated))

		out = reportingdomain.ProjectProgressReport{
			Data:      rows,
			Summary:   summary,
			Breakdown: reportingdomain.ProjectStatusBreakdown{ByStatus: byStatus},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ProjectBudget prices logged time per user at each user's effective rate
// and sets it against the project budget. All logged hours count, billable or
// not; the billable share is reported next to the total.
func (s *Service) ProjectBudget(ctx context.Context, req reportingdomain.ProjectRequest) (*reportingdomain.ProjectBudgetReport, error) {
	status, err := parseProjectStatus(req.Status)
	if err != nil {
		return nil, err
	}
	f, err := prepare(ctx, req, req.Params())
	if err != nil {
		return nil, err
	}
	systemRate := s.rates.Get().DefaultHourlyRate

	var out reportingdomain.ProjectBudgetReport
	err = s.run(ctx, reportingdomain.ReportProjectBudget, f, req, &out, func(ctx context.Context, tx *gorm.DB) error {
		projects, err := rollup.Projects(ctx, tx, f, status)
		if err != nil {
			return err
		}
		logged, err := rollup.ByProject(ctx, tx, f)
		if err != nil {
			return err
		}
		perUser, err := rollup.ByProjectUser(ctx, tx, f)
		if err != nil {
			return err
		}
		inputs, err := rollup.Rates(ctx, tx, f)
		if err != nil {
			return err
		}
		resolver := calc.NewRateResolver(systemRate, inputs.TenantDefault, inputs.UserRates)

		listed := make(map[snowflake.ID]struct{}, len(projects))
		for _, p := range projects {
			listed[p.ID] = struct{}{}
		}
		loggedTime := make(map[snowflake.ID]rollup.TimeTotals, len(logged))
		for _, p := range logged {
			loggedTime[p.ProjectID] = p.TimeTotals
		}

		used := make(map[snowflake.ID]decimal.Decimal, len(projects))
		costs := make([]reportingdomain.ProjectCost, 0, len(perUser))
		for _, row := range perUser {
			if _, ok := listed[row.ProjectID]; !ok {
				continue
			}
			rate, source := resolver.Resolve(row.UserID)
			cost := calc.LaborCost(row.TotalMinutes, rate)
			used[row.ProjectID] = used[row.ProjectID].Add(cost)
			costs = append(costs, reportingdomain.ProjectCost{
				ProjectID:  row.ProjectID,
				UserID:     row.UserID,
				Hours:      calc.Display(calc.Hours(row.TotalMinutes)),
				HourlyRate: rate,
				RateSource: string(source),
				Cost:       calc.Display(cost),
			})
		}

		summary := reportingdomain.ProjectBudgetSummary{}
		totalBudget, totalUsed, unbudgeted := decimal.Zero, decimal.Zero, decimal.Zero
		rows := make([]reportingdomain.ProjectBudgetRow, 0, len(projects))
		for _, p := range projects {
			spent := used[p.ID]
			budget := decimal.Zero
			if p.Budget != nil {
				budget = *p.Budget
			}
			row := reportingdomain.ProjectBudgetRow{
				ProjectID:         p.ID,
				Name:              p.Name,
				Status:            p.Status,
				Budget:            p.Budget,
				TotalHours:        calc.Display(calc.Hours(loggedTime[p.ID].TotalMinutes)),
				BillableHours:     calc.Display(calc.Hours(loggedTime[p.ID].BillableMinutes)),
				BudgetUsed:        calc.Display(spent),
				BudgetUtilization: calc.Display(calc.BudgetUtilization(spent, budget)),
			}
			if p.Budget != nil {
				remaining := calc.Display(calc.BudgetRemaining(budget, spent))
				row.BudgetRemaining = &remaining
				row.OverBudget = spent.GreaterThan(budget)
				totalBudget = totalBudget.Add(budget)
				totalUsed = totalUsed.Add(spent)
			} else {
				unbudgeted = unbudgeted.Add(spent)
			}
			if row.OverBudget {
				summary.OverBudgetCount++
			}
			summary.ProjectCount++
			rows = append(rows, row)
		}

		summary.TotalBudget = calc.Display(totalBudget)
		summary.TotalUsed = calc.Display(totalUsed)
		summary.UnbudgetedUsed = calc.Display(unbudgeted)
		summary.BudgetUtilization = calc.Display(calc.BudgetUtilization(totalUsed, totalBudget))
		summary.BudgetRemaining = calc.Display(calc.BudgetRemaining(totalBudget, totalUsed))

		out = reportingdomain.ProjectBudgetReport{
			Data:      rows,
			Summary:   summary,
			Breakdown: reportingdomain.ProjectBudgetBreakdown{Costs: costs},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InvoicesPayments lists invoices with their balance and checks the
// outstanding total both ways before returning it.
func (s *Service) InvoicesPayments(ctx context.Context, req reportingdomain.InvoiceRequest) (*reportingdomain.InvoicesPaymentsReport, error) {
	var status invoicedomain.InvoiceStatus
	if raw := strings.ToLower(strings.TrimSpace(req.Status)); raw != "" {
		if !invoicedomain.ValidInvoiceStatus(raw) {
			return nil, reportingdomain.ErrInvalidStatus
		}
		status = invoicedomain.InvoiceStatus(raw)
	}
	f, err := prepare(ctx, req, req.Params())
	if err != nil {
		return nil, err
	}

	var out reportingdomain.InvoicesPaymentsReport
	err = s.run(ctx, reportingdomain.ReportInvoicesPayments, f, req, &out, func(ctx context.Context, tx *gorm.DB) error {
		rows, summary, err := rollup.Invoices(ctx, tx, f, status)
		if err != nil {
			return err
		}
		payments, err := rollup.Payments(ctx, tx, f)
		if err != nil {
			return err
		}

		balances := make([]calc.Balance, 0, len(rows))
		for _, r := range rows {
			balances = append(balances, calc.Balance{Total: r.TotalAmount, Paid: r.AmountPaid})
		}
		fromTotals, fromItems := calc.Outstanding(balances)
		if !fromTotals.Equal(fromItems) || !fromTotals.Equal(summary.TotalOutstanding) {
			return fmt.Errorf("%w: outstanding %s != %s", rollup.ErrInconsistentRollup, fromTotals, fromItems)
		}

		for i := range rows {
			rows[i].TotalAmount = calc.Display(rows[i].TotalAmount)
			rows[i].AmountPaid = calc.Display(rows[i].AmountPaid)
			rows[i].BalanceDue = calc.Display(rows[i].BalanceDue)
		}
		out = reportingdomain.InvoicesPaymentsReport{
			Data: rows,
			Summary: reportingdomain.InvoiceTotals{
				TotalCount:       summary.TotalCount,
				ByStatus:         summary.ByStatus,
				TotalInvoiced:    calc.Display(summary.TotalInvoiced),
				TotalPaid:        calc.Display(summary.TotalPaid),
				TotalOutstanding: calc.Display(summary.TotalOutstanding),
				PaymentsReceived: calc.Display(payments.Received),
			},
			Breakdown: reportingdomain.InvoiceBreakdown{Payments: payments},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
