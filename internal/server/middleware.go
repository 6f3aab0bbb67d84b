package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
)

const (
	defaultTenantHeader = "X-Tenant-ID"
	defaultUserHeader   = "X-User-ID"
	defaultRoleHeader   = "X-User-Role"
)

// TenantContext copies the tenant and caller resolved by the gateway into the
// request context. Requests without a tenant pass through untouched and are
// rejected by whatever needs one.
func (s *Server) TenantContext() gin.HandlerFunc {
	tenantHeader := headerOrDefault(s.cfg.TenantHeader, defaultTenantHeader)
	userHeader := headerOrDefault(s.cfg.UserHeader, defaultUserHeader)
	roleHeader := headerOrDefault(s.cfg.RoleHeader, defaultRoleHeader)

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		tenantID, err := parseOptionalSnowflakeID(c.GetHeader(tenantHeader))
		if err != nil || tenantID == nil {
			c.Next()
			return
		}
		ctx = tenantcontext.WithTenantID(ctx, *tenantID)

		userID, err := parseOptionalSnowflakeID(c.GetHeader(userHeader))
		if err == nil && userID != nil {
			actor := tenantcontext.Actor{UserID: *userID}
			if role, ok := tenantcontext.ParseRole(c.GetHeader(roleHeader)); ok {
				actor.Role = role
			}
			ctx = tenantcontext.WithActor(ctx, actor)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func headerOrDefault(name, def string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return def
}

func tenantFromRequest(c *gin.Context) (snowflake.ID, bool) {
	return tenantcontext.TenantIDFromContext(c.Request.Context())
}
