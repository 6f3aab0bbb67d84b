package rollup

import "fmt"

// TimeRollups bundles the parallel groupings of one filter.
type TimeRollups struct {
	ByUser    []UserTime
	ByProject []ProjectTime
	ByDate    []DateTime
	Totals    TimeTotals
}

// CheckTimeConsistency asserts that every dimension partitions the same rows:
// each grouping sums to the grand total and each row splits into billable and
// non-billable time exactly.
func CheckTimeConsistency(r TimeRollups) error {
	if err := checkSplit("totals", r.Totals); err != nil {
		return err
	}

	var users, projects, dates TimeTotals
	for _, row := range r.ByUser {
		if err := checkSplit("by_user", row.TimeTotals); err != nil {
			return err
		}
		users = users.add(row.TimeTotals)
	}
	for _, row := range r.ByProject {
		if err := checkSplit("by_project", row.TimeTotals); err != nil {
			return err
		}
		projects = projects.add(row.TimeTotals)
	}
	for _, row := range r.ByDate {
		if err := checkSplit("by_date", row.TimeTotals); err != nil {
			return err
		}
		dates = dates.add(row.TimeTotals)
	}

	if r.ByUser != nil && users != r.Totals {
		return fmt.Errorf("%w: by_user %+v != totals %+v", ErrInconsistentRollup, users, r.Totals)
	}
	if r.ByProject != nil && projects != r.Totals {
		return fmt.Errorf("%w: by_project %+v != totals %+v", ErrInconsistentRollup, projects, r.Totals)
	}
	if r.ByDate != nil && dates != r.Totals {
		return fmt.Errorf("%w: by_date %+v != totals %+v", ErrInconsistentRollup, dates, r.Totals)
	}
	return nil
}

func checkSplit(dimension string, t TimeTotals) error {
	if t.BillableMinutes+t.NonBillableMinutes != t.TotalMinutes {
		return fmt.Errorf("%w: %s billable %d + non billable %d != total %d",
			ErrInconsistentRollup, dimension, t.BillableMinutes, t.NonBillableMinutes, t.TotalMinutes)
	}
	return nil
}
