// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workbook/pkg/civil"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// InvoiceStatuses lists every status in display order.
var InvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// Invoice represents an issued invoice. AmountPaid only grows as payments
// are recorded against it.
type Invoice struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	TenantID       snowflake.ID    `json:"tenant_id" gorm:"not null;index"`
	UserID         *snowflake.ID   `json:"user_id,omitempty" gorm:"index"`
	CustomerID     *snowflake.ID   `json:"customer_id,omitempty" gorm:"index"`
	Number         string          `json:"number" gorm:"type:text;not null"`
	Status         InvoiceStatus   `json:"status" gorm:"type:text;not null;default:'draft'"`
	IssueDate      civil.Date      `json:"issue_date" gorm:"type:date;not null;index"`
	DueDate        *civil.Date     `json:"due_date,omitempty" gorm:"type:date"`
	PaidDate       *civil.Date     `json:"paid_date,omitempty" gorm:"type:date"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:numeric(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `json:"tax_amount" gorm:"type:numeric(18,4);not null;default:0"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:numeric(18,4);not null;default:0"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:numeric(18,4);not null;default:0"`
	AmountPaid     decimal.Decimal `json:"amount_paid" gorm:"type:numeric(18,4);not null;default:0"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// BalanceDue is always derived from the current amount paid.
func (i Invoice) BalanceDue() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}

func ValidInvoiceStatus(status string) bool {
	for _, s := range InvoiceStatuses {
		if string(s) == status {
			return true
		}
	}
	return false
}
