package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/workbook/internal/config"
	"go.uber.org/zap"
)

const keyReport = "report:%s:%s:%s"

// ReportCache stores assembled read reports in Redis. A nil *ReportCache is
// valid and never hits. Payroll never goes through it.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewReportCache(client *redis.Client, cfg config.Config, log *zap.Logger) *ReportCache {
	if client == nil || !cfg.Redis.Enabled || cfg.Redis.CacheTTL <= 0 {
		return nil
	}
	return &ReportCache{
		client: client,
		ttl:    cfg.Redis.CacheTTL,
		log:    log.Named("report.cache"),
	}
}

// Key derives the cache key from the tenant, the report name and the request.
// Two tenants never share a key.
func Key(tenantID snowflake.ID, report string, req any) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf(keyReport, tenantID.String(), report, hex.EncodeToString(sum[:])), nil
}

// Get decodes a cached report into dst and reports whether it was found.
// Errors are logged and treated as a miss.
func (c *ReportCache) Get(ctx context.Context, tenantID snowflake.ID, report string, req any, dst any) bool {
	if c == nil {
		return false
	}
	key, err := Key(tenantID, report, req)
	if err != nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("report cache read failed", zap.String("report", report), zap.Error(err))
		}
		return false
	}
	if err := decodeEntry(raw, dst); err != nil {
		c.log.Warn("report cache entry undecodable", zap.String("report", report), zap.Error(err))
		return false
	}
	return true
}

func (c *ReportCache) Set(ctx context.Context, tenantID snowflake.ID, report string, req any, value any) {
	if c == nil {
		return
	}
	key, err := Key(tenantID, report, req)
	if err != nil {
		return
	}
	raw, err := encodeEntry(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("report cache write failed", zap.String("report", report), zap.Error(err))
	}
}

// Entries are snappy compressed JSON. Daily and per-task reports repeat the
// same keys on every row and shrink well.
func encodeEntry(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decodeEntry(raw []byte, dst any) error {
	plain, err := snappy.Decode(nil, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, dst)
}
