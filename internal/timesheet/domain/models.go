// Package domain contains the timesheet approval workflow.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workbook/pkg/civil"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusReopened  Status = "reopened"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusRejected:  {StatusReopened},
	StatusApproved:  {StatusReopened},
	StatusReopened:  {StatusSubmitted},
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Timesheet struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	TenantID    snowflake.ID  `json:"tenant_id" gorm:"not null;index"`
	UserID      snowflake.ID  `json:"user_id" gorm:"not null;index"`
	PeriodStart civil.Date    `json:"period_start" gorm:"type:date;not null"`
	PeriodEnd   civil.Date    `json:"period_end" gorm:"type:date;not null"`
	Status      Status        `json:"status" gorm:"type:text;not null;default:'draft'"`
	ReviewedBy  *snowflake.ID `json:"reviewed_by,omitempty"`
	Note        string        `json:"note,omitempty" gorm:"type:text"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Timesheet) TableName() string { return "timesheets" }

type TransitionRequest struct {
	TimesheetID snowflake.ID
	To          Status
	Note        string
}

type Service interface {
	Transition(ctx context.Context, req TransitionRequest) (*Timesheet, error)
}

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrTimesheetNotFound = errors.New("timesheet_not_found")
	ErrInvalidTransition = errors.New("invalid_timesheet_transition")
	ErrConcurrentUpdate  = errors.New("timesheet_concurrent_update")
	ErrReviewerRequired  = errors.New("reviewer_required")
)
