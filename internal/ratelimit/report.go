package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/workbook/internal/config"
)

const keyReportTenant = "report:rate:tenant:%s"

// ReportLimiter throttles report requests per tenant. A nil limiter allows
// everything.
type ReportLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewReportLimiter(client *redis.Client, cfg config.Config) *ReportLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil || limitCfg.ReportRate <= 0 || limitCfg.ReportBurst <= 0 {
		return nil
	}
	return &ReportLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.ReportRate,
		burst:  limitCfg.ReportBurst,
	}
}

func (l *ReportLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *ReportLimiter) AllowTenant(ctx context.Context, tenantID snowflake.ID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyReportTenant, tenantID), l.rate, l.burst)
}
