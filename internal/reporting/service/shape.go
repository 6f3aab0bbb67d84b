package service

import (
	"github.com/smallbiznis/workbook/internal/reporting/calc"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/smallbiznis/workbook/internal/reporting/rollup"
)

func hoursOf(t rollup.TimeTotals) reportingdomain.Hours {
	return reportingdomain.Hours{
		TotalHours:       calc.Display(calc.Hours(t.TotalMinutes)),
		BillableHours:    calc.Display(calc.Hours(t.BillableMinutes)),
		NonBillableHours: calc.Display(calc.Hours(t.NonBillableMinutes)),
	}
}

func timeSummary(totals rollup.TimeTotals, days int64) reportingdomain.TimeSummary {
	total := calc.Hours(totals.TotalMinutes)
	return reportingdomain.TimeSummary{
		TimeTotals:         totals,
		Hours:              hoursOf(totals),
		UtilizationRate:    calc.Display(calc.UtilizationRate(calc.Hours(totals.BillableMinutes), total)),
		DaysWorked:         days,
		AverageHoursPerDay: calc.Display(calc.AverageHoursPerDay(total, days)),
	}
}

func teamSummary(totals rollup.TimeTotals, days, members int64) reportingdomain.TeamSummary {
	total := calc.Hours(totals.TotalMinutes)
	return reportingdomain.TeamSummary{
		MemberCount:        members,
		UtilizationRate:    calc.Display(calc.UtilizationRate(calc.Hours(totals.BillableMinutes), total)),
		DaysWorked:         days,
		AverageHoursPerDay: calc.Display(calc.AverageHoursPerDay(total, days)),
		TimeTotals:         totals,
		Hours:              hoursOf(totals),
	}
}

func dailySummary(totals rollup.TimeTotals, days int64) reportingdomain.DailySummary {
	return reportingdomain.DailySummary{
		Days:               days,
		AverageHoursPerDay: calc.Display(calc.AverageHoursPerDay(calc.Hours(totals.TotalMinutes), days)),
		TimeTotals:         totals,
		Hours:              hoursOf(totals),
	}
}

func userHours(rows []rollup.UserTime) []reportingdomain.UserHours {
	out := make([]reportingdomain.UserHours, 0, len(rows))
	for _, r := range rows {
		out = append(out, reportingdomain.UserHours{UserTime: r, Hours: hoursOf(r.TimeTotals)})
	}
	return out
}

func projectHours(rows []rollup.ProjectTime) []reportingdomain.ProjectHours {
	out := make([]reportingdomain.ProjectHours, 0, len(rows))
	for _, r := range rows {
		out = append(out, reportingdomain.ProjectHours{ProjectTime: r, Hours: hoursOf(r.TimeTotals)})
	}
	return out
}

func dateHours(rows []rollup.DateTime) []reportingdomain.DateHours {
	out := make([]reportingdomain.DateHours, 0, len(rows))
	for _, r := range rows {
		out = append(out, reportingdomain.DateHours{DateTime: r, Hours: hoursOf(r.TimeTotals)})
	}
	return out
}

func members(rows []rollup.UserTime) []reportingdomain.MemberUtilization {
	out := make([]reportingdomain.MemberUtilization, 0, len(rows))
	for _, r := range rows {
		total := calc.Hours(r.TotalMinutes)
		out = append(out, reportingdomain.MemberUtilization{
			UserID:             r.UserID,
			FullName:           r.FullName,
			TotalMinutes:       r.TotalMinutes,
			BillableMinutes:    r.BillableMinutes,
			NonBillableMinutes: r.NonBillableMinutes,
			EntryCount:         r.EntryCount,
			DaysWorked:         r.DaysWorked,
			UtilizationRate:    calc.Display(calc.UtilizationRate(calc.Hours(r.BillableMinutes), total)),
			AverageHoursPerDay: calc.Display(calc.AverageHoursPerDay(total, r.DaysWorked)),
			Hours:              hoursOf(r.TimeTotals),
		})
	}
	return out
}
