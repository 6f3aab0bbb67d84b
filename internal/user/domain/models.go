// Package domain contains persistence models for users and their tenant memberships.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
)

type User struct {
	ID         snowflake.ID     `json:"id" gorm:"primaryKey"`
	FullName   string           `json:"full_name" gorm:"type:text;not null"`
	Email      string           `json:"email" gorm:"type:text;not null;uniqueIndex"`
	HourlyRate *decimal.Decimal `json:"hourly_rate" gorm:"type:numeric(18,4)"`
	CreatedAt  time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

// Membership attaches a user to a tenant with a role.
type Membership struct {
	TenantID  snowflake.ID       `json:"tenant_id" gorm:"primaryKey"`
	UserID    snowflake.ID       `json:"user_id" gorm:"primaryKey"`
	Role      tenantcontext.Role `json:"role" gorm:"type:text;not null"`
	CreatedAt time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Membership) TableName() string { return "tenant_members" }
