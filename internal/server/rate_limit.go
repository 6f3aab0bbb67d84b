package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workbook/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonTenantRate = "tenant-rate"

// ReportRateLimit throttles report requests per tenant with a Redis token
// bucket. A limiter error lets the request through.
func (s *Server) ReportRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.reportLimiter.Enabled() {
			c.Next()
			return
		}

		tenantID, ok := tenantFromRequest(c)
		if !ok {
			// authorization rejects it next
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.reportLimiter.AllowTenant(ctx, tenantID)
		if err != nil {
			logger.FromContext(ctx).Warn("report rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if result.Allowed {
			setRateLimitHeaders(c, result.Limit, result.Remaining)
			c.Next()
			return
		}

		report := reportFromPath(c)
		logger.FromContext(ctx).Warn("report rate limit exceeded",
			zap.String("reason", rateLimitReasonTenantRate),
			zap.String("report", report),
		)
		s.obsMetrics.RecordRateLimited(ctx, report, rateLimitReasonTenantRate)

		retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		setRateLimitHeaders(c, result.Limit, result.Remaining)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.Header("X-Rate-Limited-Reason", rateLimitReasonTenantRate)
		AbortWithError(c, ErrRateLimited)
	}
}

func setRateLimitHeaders(c *gin.Context, limit, remaining int) {
	if limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
}

func reportFromPath(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return "unknown"
	}
	path := strings.TrimSuffix(strings.TrimSpace(c.Request.URL.Path), "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 && idx < len(path)-1 {
		return strings.ReplaceAll(path[idx+1:], "-", "_")
	}
	return "unknown"
}
