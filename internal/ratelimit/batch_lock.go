package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/workbook/internal/config"
	"go.uber.org/zap"
)

const keyBatchLock = "payroll:batch:lock:%s:%s"

// Deletes the key only while it still carries the caller's token, so an
// expired lock taken over by another instance is left alone.
const releaseBatchScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const defaultBatchLockTTL = 2 * time.Minute

// BatchLock keeps two instances from processing the same payroll batch at
// once. Without Redis every lock is granted.
type BatchLock struct {
	client  *redis.Client
	release *redis.Script
	ttl     time.Duration
	log     *zap.Logger
}

func NewBatchLock(client *redis.Client, cfg config.Config, log *zap.Logger) *BatchLock {
	ttl := time.Duration(cfg.RateLimit.BatchLockSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultBatchLockTTL
	}
	return &BatchLock{
		client:  client,
		release: redis.NewScript(releaseBatchScript),
		ttl:     ttl,
		log:     log.Named("ratelimit.batch_lock"),
	}
}

func batchLockKey(tenantID, batchID snowflake.ID) string {
	return fmt.Sprintf(keyBatchLock, tenantID, batchID)
}

func (b *BatchLock) LockBatch(ctx context.Context, tenantID, batchID snowflake.ID) (func(context.Context), bool, error) {
	noop := func(context.Context) {}
	if b == nil || b.client == nil {
		return noop, true, nil
	}

	key := batchLockKey(tenantID, batchID)
	owner := uuid.NewString()
	acquired, err := b.client.SetNX(ctx, key, owner, b.ttl).Result()
	if err != nil {
		return noop, false, err
	}
	if !acquired {
		b.log.Debug("batch lock held elsewhere",
			zap.String("tenant_id", tenantID.String()),
			zap.String("batch_id", batchID.String()),
		)
		return noop, false, nil
	}

	return func(ctx context.Context) {
		if err := b.release.Run(ctx, b.client, []string{key}, owner).Err(); err != nil {
			b.log.Warn("release batch lock", zap.String("key", key), zap.Error(err))
		}
	}, true, nil
}
