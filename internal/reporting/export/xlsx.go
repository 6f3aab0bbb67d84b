// Package export renders grid reports as xlsx workbooks.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gosimple/slug"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ErrUnsupportedReport = errors.New("unsupported_export")

// Sheet is one worksheet: a header row followed by value rows.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Filename builds the attachment name, e.g. "time-summary-2024-02-01.xlsx".
func Filename(report string, at time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", slug.Make(report), at.UTC().Format("2006-01-02"))
}

// Write renders sheets into one workbook and writes it to w.
func Write(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return errors.New("export: no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return err
		}
		if err := writeSheet(f, sheet); err != nil {
			return fmt.Errorf("export sheet %s: %w", sheet.Name, err)
		}
	}
	f.SetActiveSheet(0)

	_, err := f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, sheet Sheet) error {
	header := make([]any, len(sheet.Headers))
	for i, h := range sheet.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return err
	}
	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet.Name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// Sheets converts a report into worksheets. Only grid reports are supported.
func Sheets(report any) ([]Sheet, error) {
	switch r := report.(type) {
	case *reportingdomain.TimeSummaryReport:
		return timeSummarySheets(r), nil
	case *reportingdomain.TeamUtilizationReport:
		return teamUtilizationSheets(r), nil
	case *reportingdomain.DailyTotalsReport:
		return dailyTotalsSheets(r), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedReport, report)
	}
}

func timeSummarySheets(r *reportingdomain.TimeSummaryReport) []Sheet {
	entries := Sheet{
		Name:    "Entries",
		Headers: []string{"Date", "User", "Project", "Minutes", "Billable", "Description"},
	}
	for _, e := range r.Data {
		entries.Rows = append(entries.Rows, []any{
			e.WorkDate.String(), e.UserName, e.ProjectName, e.DurationMinutes, e.Billable, e.Description,
		})
	}

	users := Sheet{
		Name:    "By User",
		Headers: []string{"User", "Total Hours", "Billable Hours", "Non-billable Hours", "Days Worked"},
	}
	for _, u := range r.Breakdown.ByUser {
		users.Rows = append(users.Rows, []any{
			u.FullName, u.TotalHours.InexactFloat64(), u.BillableHours.InexactFloat64(), u.NonBillableHours.InexactFloat64(), u.DaysWorked,
		})
	}

	projects := Sheet{
		Name:    "By Project",
		Headers: []string{"Project", "Total Hours", "Billable Hours", "Non-billable Hours"},
	}
	for _, p := range r.Breakdown.ByProject {
		projects.Rows = append(projects.Rows, []any{
			p.ProjectName, p.TotalHours.InexactFloat64(), p.BillableHours.InexactFloat64(), p.NonBillableHours.InexactFloat64(),
		})
	}

	s := r.Summary
	summary := Sheet{
		Name:    "Summary",
		Headers: []string{"Total Hours", "Billable Hours", "Non-billable Hours", "Utilization %", "Days Worked", "Avg Hours/Day"},
		Rows: [][]any{{
			s.TotalHours.InexactFloat64(), s.BillableHours.InexactFloat64(), s.NonBillableHours.InexactFloat64(),
			s.UtilizationRate.InexactFloat64(), s.DaysWorked, s.AverageHoursPerDay.InexactFloat64(),
		}},
	}
	return []Sheet{summary, entries, users, projects}
}

func teamUtilizationSheets(r *reportingdomain.TeamUtilizationReport) []Sheet {
	members := Sheet{
		Name:    "Team",
		Headers: []string{"Member", "Total Hours", "Billable Hours", "Utilization %", "Days Worked", "Avg Hours/Day"},
	}
	for _, m := range r.Data {
		members.Rows = append(members.Rows, []any{
			m.FullName, m.TotalHours.InexactFloat64(), m.BillableHours.InexactFloat64(),
			m.UtilizationRate.InexactFloat64(), m.DaysWorked, m.AverageHoursPerDay.InexactFloat64(),
		})
	}
	return []Sheet{members}
}

func dailyTotalsSheets(r *reportingdomain.DailyTotalsReport) []Sheet {
	days := Sheet{
		Name:    "Daily Totals",
		Headers: []string{"Date", "Total Hours", "Billable Hours", "Non-billable Hours", "Entries"},
	}
	for _, d := range r.Data {
		days.Rows = append(days.Rows, []any{
			d.WorkDate.String(), d.TotalHours.InexactFloat64(), d.BillableHours.InexactFloat64(),
			d.NonBillableHours.InexactFloat64(), d.EntryCount,
		})
	}
	return []Sheet{days}
}
