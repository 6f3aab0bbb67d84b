package rls

import (
	"strconv"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TenantSetting is the session variable the app_tenant_visible policy
// function compares each row's tenant_id against.
const TenantSetting = "app.current_tenant_id"

// WithTenant binds tenantID for the rest of the transaction tx belongs to.
// The setting is transaction local and disappears on commit or rollback.
func WithTenant(tx *gorm.DB, tenantID snowflake.ID) error {
	return tx.Exec("SELECT set_config(?, ?, true)", TenantSetting, strconv.FormatInt(int64(tenantID), 10)).Error
}
