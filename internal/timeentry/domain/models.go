// Package domain contains the time entry model consumed by reporting.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workbook/pkg/civil"
)

var (
	ErrInvalidDuration    = errors.New("invalid_duration")
	ErrIncompleteInterval = errors.New("incomplete_interval")
	ErrDurationMismatch   = errors.New("duration_mismatch")
)

type TimeEntry struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	TenantID        snowflake.ID  `json:"tenant_id" gorm:"not null;index:idx_time_entries_tenant_date,priority:1"`
	ProjectID       snowflake.ID  `json:"project_id" gorm:"not null;index"`
	TaskID          *snowflake.ID `json:"task_id,omitempty" gorm:"index"`
	UserID          snowflake.ID  `json:"user_id" gorm:"not null;index"`
	WorkDate        civil.Date    `json:"work_date" gorm:"type:date;not null;index:idx_time_entries_tenant_date,priority:2"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	DurationMinutes int64         `json:"duration_minutes" gorm:"not null"`
	Billable        bool          `json:"billable" gorm:"not null;default:false"`
	Description     string        `json:"description" gorm:"type:text"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TimeEntry) TableName() string { return "time_entries" }

// Normalize enforces the duration invariant. With both timestamps present the
// duration is derived (or checked when already set); with neither, a positive
// duration is required. A lone timestamp is rejected.
func (e *TimeEntry) Normalize() error {
	switch {
	case e.StartedAt != nil && e.EndedAt != nil:
		if !e.EndedAt.After(*e.StartedAt) {
			return ErrInvalidDuration
		}
		derived := int64(e.EndedAt.Sub(*e.StartedAt) / time.Minute)
		if e.DurationMinutes == 0 {
			e.DurationMinutes = derived
		}
		if e.DurationMinutes != derived {
			return ErrDurationMismatch
		}
	case e.StartedAt != nil || e.EndedAt != nil:
		return ErrIncompleteInterval
	}
	if e.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	return nil
}
