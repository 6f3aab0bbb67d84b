package rollup

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/workbook/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"github.com/smallbiznis/workbook/pkg/civil"
	"gorm.io/gorm"
)

// InvoiceRow is one invoice with its derived balance.
type InvoiceRow struct {
	ID          snowflake.ID                `json:"id" gorm:"column:id"`
	Number      string                      `json:"number" gorm:"column:number"`
	Status      invoicedomain.InvoiceStatus `json:"status" gorm:"column:status"`
	UserID      *snowflake.ID               `json:"user_id,omitempty" gorm:"column:user_id"`
	CustomerID  *snowflake.ID               `json:"customer_id,omitempty" gorm:"column:customer_id"`
	IssueDate   civil.Date                  `json:"issue_date" gorm:"column:issue_date"`
	DueDate     *civil.Date                 `json:"due_date,omitempty" gorm:"column:due_date"`
	TotalAmount decimal.Decimal             `json:"total_amount" gorm:"column:total_amount"`
	AmountPaid  decimal.Decimal             `json:"amount_paid" gorm:"column:amount_paid"`
	BalanceDue  decimal.Decimal             `json:"balance_due" gorm:"-"`
}

// InvoiceSummary holds status counts and money sums taken from one row set.
type InvoiceSummary struct {
	TotalCount       int64                                 `json:"total_count"`
	ByStatus         map[invoicedomain.InvoiceStatus]int64 `json:"by_status"`
	TotalInvoiced    decimal.Decimal                       `json:"total_invoiced"`
	TotalPaid        decimal.Decimal                       `json:"total_paid"`
	TotalOutstanding decimal.Decimal                       `json:"total_outstanding"`
}

// Invoices loads the invoices of f, newest first, and summarizes the very
// same rows so counts and sums cannot disagree. An empty status means any.
func Invoices(ctx context.Context, db *gorm.DB, f scope.Filter, status invoicedomain.InvoiceStatus) ([]InvoiceRow, InvoiceSummary, error) {
	if err := guard(f); err != nil {
		return nil, InvoiceSummary{}, err
	}

	q := f.Invoices(db.WithContext(ctx))
	if status != "" {
		q = q.Where("i.status = ?", status)
	}
	var rows []InvoiceRow
	err := q.
		Select(`i.id AS id, i.number AS number, i.status AS status,
			i.user_id AS user_id, i.customer_id AS customer_id,
			i.issue_date AS issue_date, i.due_date AS due_date,
			i.total_amount AS total_amount, i.amount_paid AS amount_paid`).
		Order("i.issue_date DESC, i.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, InvoiceSummary{}, fmt.Errorf("list invoices: %w", err)
	}
	if rows == nil {
		rows = []InvoiceRow{}
	}

	summary := InvoiceSummary{
		ByStatus:      make(map[invoicedomain.InvoiceStatus]int64, len(invoicedomain.InvoiceStatuses)),
		TotalInvoiced: decimal.Zero,
		TotalPaid:     decimal.Zero,
	}
	for _, s := range invoicedomain.InvoiceStatuses {
		summary.ByStatus[s] = 0
	}

	totals := make([]decimal.Decimal, 0, len(rows))
	paid := make([]decimal.Decimal, 0, len(rows))
	for i := range rows {
		rows[i].BalanceDue = rows[i].TotalAmount.Sub(rows[i].AmountPaid)
		summary.TotalCount++
		summary.ByStatus[rows[i].Status]++
		totals = append(totals, rows[i].TotalAmount)
		paid = append(paid, rows[i].AmountPaid)
	}
	if len(rows) > 0 {
		summary.TotalInvoiced = decimal.Sum(decimal.Zero, totals...)
		summary.TotalPaid = decimal.Sum(decimal.Zero, paid...)
	}
	summary.TotalOutstanding = summary.TotalInvoiced.Sub(summary.TotalPaid)

	return rows, summary, nil
}

// PaymentStatusTotals aggregates payments of one status.
type PaymentStatusTotals struct {
	Count     int64           `json:"count"`
	Amount    decimal.Decimal `json:"amount"`
	FeeAmount decimal.Decimal `json:"fee_amount"`
	NetAmount decimal.Decimal `json:"net_amount"`
}

type PaymentSummary struct {
	TotalCount int64                                               `json:"total_count"`
	ByStatus   map[paymentdomain.PaymentStatus]PaymentStatusTotals `json:"by_status"`
	// Received counts completed payments only.
	Received decimal.Decimal `json:"received"`
}

type paymentGroupRow struct {
	Status    string          `gorm:"column:status"`
	Count     int64           `gorm:"column:payment_count"`
	Amount    decimal.Decimal `gorm:"column:amount"`
	FeeAmount decimal.Decimal `gorm:"column:fee_amount"`
	NetAmount decimal.Decimal `gorm:"column:net_amount"`
}

// Payments groups the payments of f by status.
func Payments(ctx context.Context, db *gorm.DB, f scope.Filter) (PaymentSummary, error) {
	if err := guard(f); err != nil {
		return PaymentSummary{}, err
	}

	var rows []paymentGroupRow
	err := f.Payments(db.WithContext(ctx)).
		Select(`pm.status AS status,
			COUNT(pm.id) AS payment_count,
			COALESCE(SUM(pm.amount), 0) AS amount,
			COALESCE(SUM(pm.fee_amount), 0) AS fee_amount,
			COALESCE(SUM(pm.net_amount), 0) AS net_amount`).
		Group("pm.status").
		Scan(&rows).Error
	if err != nil {
		return PaymentSummary{}, fmt.Errorf("rollup payments: %w", err)
	}

	out := PaymentSummary{
		ByStatus: make(map[paymentdomain.PaymentStatus]PaymentStatusTotals, len(paymentdomain.PaymentStatuses)),
		Received: decimal.Zero,
	}
	for _, s := range paymentdomain.PaymentStatuses {
		out.ByStatus[s] = PaymentStatusTotals{Amount: decimal.Zero, FeeAmount: decimal.Zero, NetAmount: decimal.Zero}
	}
	for _, r := range rows {
		status := paymentdomain.PaymentStatus(r.Status)
		out.ByStatus[status] = PaymentStatusTotals{
			Count:     r.Count,
			Amount:    r.Amount,
			FeeAmount: r.FeeAmount,
			NetAmount: r.NetAmount,
		}
		out.TotalCount += r.Count
		if status == paymentdomain.PaymentStatusCompleted {
			out.Received = out.Received.Add(r.Amount)
		}
	}
	return out, nil
}
