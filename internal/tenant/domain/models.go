// Package domain contains persistence models for tenants.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Tenant is the isolation boundary for every record in the system.
type Tenant struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Slug      string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Tenant) TableName() string { return "tenants" }

// Settings holds tenant-wide defaults used by financial calculations.
type Settings struct {
	TenantID          snowflake.ID     `json:"tenant_id" gorm:"primaryKey"`
	DefaultHourlyRate *decimal.Decimal `json:"default_hourly_rate" gorm:"type:numeric(18,4)"`
	Currency          string           `json:"currency" gorm:"type:text;not null;default:'USD'"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Settings) TableName() string { return "tenant_settings" }
