// Package domain contains payroll batches and the payroll calculation types.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	"github.com/smallbiznis/workbook/pkg/civil"
	"github.com/smallbiznis/workbook/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BatchStatus string

const (
	BatchStatusDraft      BatchStatus = "draft"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

var transitions = map[BatchStatus][]BatchStatus{
	BatchStatusDraft:      {BatchStatusProcessing},
	BatchStatusProcessing: {BatchStatusCompleted},
}

// CanTransition reports whether from -> to is an allowed move. Completed is
// terminal.
func CanTransition(from, to BatchStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ParseBatchStatus(raw string) (BatchStatus, bool) {
	switch s := BatchStatus(raw); s {
	case BatchStatusDraft, BatchStatusProcessing, BatchStatusCompleted:
		return s, true
	default:
		return "", false
	}
}

type Batch struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	TenantID    snowflake.ID    `json:"tenant_id" gorm:"not null;index;uniqueIndex:ux_payroll_batches_tenant_reference,priority:1"`
	Reference   *string         `json:"reference,omitempty" gorm:"type:text;uniqueIndex:ux_payroll_batches_tenant_reference,priority:2"`
	PeriodStart civil.Date      `json:"period_start" gorm:"type:date;not null"`
	PeriodEnd   civil.Date      `json:"period_end" gorm:"type:date;not null"`
	Status      BatchStatus     `json:"status" gorm:"type:text;not null;default:'draft'"`
	LineCount   int             `json:"line_count" gorm:"not null;default:0"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:numeric(18,4);not null;default:0"`
	// Metadata snapshots the rates that priced the batch.
	Metadata    datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedBy   *snowflake.ID  `json:"created_by,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Batch) TableName() string { return "payroll_batches" }

// Line is one user's pay in a batch. Lines are written with the batch and
// never updated.
type Line struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	TenantID        snowflake.ID    `json:"tenant_id" gorm:"not null;index"`
	BatchID         snowflake.ID    `json:"batch_id" gorm:"not null;index"`
	UserID          snowflake.ID    `json:"user_id" gorm:"not null"`
	BillableMinutes int64           `json:"billable_minutes" gorm:"not null"`
	BillableHours   decimal.Decimal `json:"billable_hours" gorm:"type:numeric(18,4);not null"`
	HourlyRate      decimal.Decimal `json:"hourly_rate" gorm:"type:numeric(18,4);not null"`
	RateSource      string          `json:"rate_source" gorm:"type:text;not null"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:numeric(18,4);not null"`
	CreatedAt       time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Line) TableName() string { return "payroll_lines" }

type PreviewRequest struct {
	StartDate civil.Date     `json:"start_date" validate:"required,civildate"`
	EndDate   civil.Date     `json:"end_date" validate:"required,civildate"`
	UserIDs   []snowflake.ID `json:"user_ids,omitempty"`
}

type PreviewLine struct {
	UserID          snowflake.ID    `json:"user_id"`
	FullName        string          `json:"full_name"`
	BillableMinutes int64           `json:"billable_minutes"`
	BillableHours   decimal.Decimal `json:"billable_hours"`
	HourlyRate      decimal.Decimal `json:"hourly_rate"`
	RateSource      string          `json:"rate_source"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// Preview is the deterministic payroll for a period. Lines are ordered by
// user id.
type Preview struct {
	StartDate    civil.Date      `json:"start_date"`
	EndDate      civil.Date      `json:"end_date"`
	Lines        []PreviewLine   `json:"lines"`
	TotalMinutes int64           `json:"total_minutes"`
	TotalHours   decimal.Decimal `json:"total_hours"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

type CreateBatchRequest struct {
	PreviewRequest
	Reference string `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type BatchDetail struct {
	Batch Batch  `json:"batch"`
	Lines []Line `json:"lines"`
}

type ProcessResult struct {
	Batch    Batch                   `json:"batch"`
	Payments []paymentdomain.Payment `json:"payments"`
}

type ListBatchesRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ListBatchesResponse struct {
	Batches  []Batch              `json:"batches"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, batch *Batch, lines []Line) error
	FindBatch(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Batch, error)
	ListLines(ctx context.Context, db *gorm.DB, tenantID, batchID snowflake.ID) ([]Line, error)
	// TransitionStatus moves a batch only if it is still in from.
	TransitionStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to BatchStatus, at time.Time) (bool, error)
	ListBatches(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, status BatchStatus, cursor *pagination.Cursor, limit int) ([]*Batch, error)
}

// PaymentWriter persists the payments a batch produces on the caller's
// transaction.
type PaymentWriter interface {
	Insert(ctx context.Context, db *gorm.DB, payment *paymentdomain.Payment) error
}

// BatchLocker serializes processing of one batch across instances. The
// returned release func is always safe to call.
type BatchLocker interface {
	LockBatch(ctx context.Context, tenantID, batchID snowflake.ID) (release func(context.Context), acquired bool, err error)
}

type Service interface {
	Calculate(ctx context.Context, req PreviewRequest) (*Preview, error)
	CreateBatch(ctx context.Context, req CreateBatchRequest) (*BatchDetail, error)
	ProcessBatch(ctx context.Context, id snowflake.ID) (*ProcessResult, error)
	GetBatch(ctx context.Context, id snowflake.ID) (*BatchDetail, error)
	ListBatches(ctx context.Context, req ListBatchesRequest) (*ListBatchesResponse, error)
}

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrInvalidRange      = errors.New("invalid_date_range")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrBatchNotFound     = errors.New("batch_not_found")
	ErrBatchExists       = errors.New("batch_already_exists")
	ErrInvalidTransition = errors.New("invalid_batch_transition")
	ErrBatchProcessing   = errors.New("batch_processing_failed")
	ErrBatchLocked       = errors.New("batch_locked")
)
