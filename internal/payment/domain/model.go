package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workbook/pkg/civil"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusRefunded,
	PaymentStatusCancelled,
}

const MethodPayroll = "payroll"

type Payment struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	TenantID       snowflake.ID    `json:"tenant_id" gorm:"not null;index"`
	InvoiceID      *snowflake.ID   `json:"invoice_id,omitempty" gorm:"index"`
	UserID         snowflake.ID    `json:"user_id" gorm:"not null;index"`
	PayrollBatchID *snowflake.ID   `json:"payroll_batch_id,omitempty" gorm:"index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(18,4);not null"`
	FeeAmount      decimal.Decimal `json:"fee_amount" gorm:"type:numeric(18,4);not null;default:0"`
	NetAmount      decimal.Decimal `json:"net_amount" gorm:"type:numeric(18,4);not null"`
	Status         PaymentStatus   `json:"status" gorm:"type:text;not null"`
	PaymentDate    civil.Date      `json:"payment_date" gorm:"type:date;not null;index"`
	Method         string          `json:"method" gorm:"type:text;not null"`
	Metadata       datatypes.JSON  `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string { return "payments" }

// RecordRequest records a completed payment, optionally against an invoice.
type RecordRequest struct {
	InvoiceID   *snowflake.ID
	UserID      snowflake.ID
	Amount      decimal.Decimal
	FeeAmount   decimal.Decimal
	PaymentDate civil.Date
	Method      string
}

// Repository writes payments. Every method runs on the handle it is given so
// callers can compose it into their own transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	IncrementInvoicePaid(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID, amount decimal.Decimal) (bool, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID) ([]Payment, error)
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*Payment, error)
	ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
}

var (
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidFee     = errors.New("invalid_fee")
	ErrInvalidMethod  = errors.New("invalid_method")
	ErrInvoiceMissing = errors.New("invoice_not_found")
)
