package rollup

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"gorm.io/gorm"
)

// RateInputs are the stored hourly rates visible to one tenant.
type RateInputs struct {
	TenantDefault *decimal.Decimal
	UserRates     map[snowflake.ID]*decimal.Decimal
}

type userRateRow struct {
	UserID     snowflake.ID     `gorm:"column:user_id"`
	HourlyRate *decimal.Decimal `gorm:"column:hourly_rate"`
}

// Rates loads the tenant default rate and the rate of every member of the
// tenant. Users outside the tenant are never read.
func Rates(ctx context.Context, db *gorm.DB, f scope.Filter) (RateInputs, error) {
	if err := guard(f); err != nil {
		return RateInputs{}, err
	}
	conn := db.Session(&gorm.Session{NewDB: true}).WithContext(ctx)

	var settings struct {
		DefaultHourlyRate *decimal.Decimal `gorm:"column:default_hourly_rate"`
	}
	err := conn.Table("tenant_settings").
		Select("default_hourly_rate").
		Where("tenant_id = ?", f.TenantID()).
		Limit(1).
		Scan(&settings).Error
	if err != nil {
		return RateInputs{}, fmt.Errorf("load tenant rate: %w", err)
	}

	var rows []userRateRow
	err = conn.Table("tenant_members AS m").
		Select("m.user_id AS user_id, u.hourly_rate AS hourly_rate").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.tenant_id = ?", f.TenantID()).
		Scan(&rows).Error
	if err != nil {
		return RateInputs{}, fmt.Errorf("load user rates: %w", err)
	}

	out := RateInputs{
		TenantDefault: settings.DefaultHourlyRate,
		UserRates:     make(map[snowflake.ID]*decimal.Decimal, len(rows)),
	}
	for _, r := range rows {
		out.UserRates[r.UserID] = r.HourlyRate
	}
	return out, nil
}
