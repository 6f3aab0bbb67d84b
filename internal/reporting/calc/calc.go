// Package calc derives hours, rates, percentages and money from rollup
// aggregates. Every function is pure and zero safe: a zero denominator yields
// zero, never an error. Percentages are not clamped.
package calc

import (
	"github.com/shopspring/decimal"
)

var (
	sixty   = decimal.NewFromInt(60)
	hundred = decimal.NewFromInt(100)
)

// Hours converts minutes to hours at full precision.
func Hours(minutes int64) decimal.Decimal {
	return decimal.NewFromInt(minutes).Div(sixty)
}

// Display rounds to two decimal places, halves away from zero, so a negative
// remaining budget rounds like its positive mirror. Apply it only when a value
// leaves the engine.
func Display(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LaborCost is minutes × hourly rate / 60, multiplied before dividing so whole
// hour amounts stay exact.
func LaborCost(minutes int64, hourlyRate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(minutes).Mul(hourlyRate).Div(sixty)
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// UtilizationRate is billable / total × 100.
func UtilizationRate(billableHours, totalHours decimal.Decimal) decimal.Decimal {
	return percent(billableHours, totalHours)
}

// CompletionRate is completed / total × 100.
func CompletionRate(completed, total int64) decimal.Decimal {
	return percent(decimal.NewFromInt(completed), decimal.NewFromInt(total))
}

// BudgetUtilization is used / budget × 100, zero when there is no positive
// budget.
func BudgetUtilization(used, budget decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return decimal.Zero
	}
	return percent(used, budget)
}

// BudgetRemaining goes negative when a project is over budget.
func BudgetRemaining(budget, used decimal.Decimal) decimal.Decimal {
	return budget.Sub(used)
}

func HoursVariance(actual, estimated decimal.Decimal) decimal.Decimal {
	return actual.Sub(estimated)
}

// VariancePercent is variance / estimated × 100.
func VariancePercent(actual, estimated decimal.Decimal) decimal.Decimal {
	return percent(HoursVariance(actual, estimated), estimated)
}

func AverageHoursPerDay(totalHours decimal.Decimal, distinctDays int64) decimal.Decimal {
	if distinctDays <= 0 {
		return decimal.Zero
	}
	return totalHours.Div(decimal.NewFromInt(distinctDays))
}

// Balance is the money side of one invoice.
type Balance struct {
	Total decimal.Decimal
	Paid  decimal.Decimal
}

// Outstanding returns Σtotal − Σpaid and Σ(total − paid). Decimal arithmetic
// keeps the two equal; callers compare them as a consistency check.
func Outstanding(items []Balance) (fromTotals, fromItems decimal.Decimal) {
	var total, paid decimal.Decimal
	for _, b := range items {
		total = total.Add(b.Total)
		paid = paid.Add(b.Paid)
		fromItems = fromItems.Add(b.Total.Sub(b.Paid))
	}
	return total.Sub(paid), fromItems
}
