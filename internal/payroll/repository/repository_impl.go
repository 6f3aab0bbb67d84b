package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workbook/internal/payroll/domain"
	"github.com/smallbiznis/workbook/pkg/db"
	"github.com/smallbiznis/workbook/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, conn *gorm.DB, batch *domain.Batch, lines []domain.Line) error {
	if err := conn.WithContext(ctx).Create(batch).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrBatchExists
		}
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&lines).Error
}

func (r *repo) FindBatch(ctx context.Context, conn *gorm.DB, tenantID, id snowflake.ID) (*domain.Batch, error) {
	var batch domain.Batch
	err := conn.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (r *repo) ListLines(ctx context.Context, conn *gorm.DB, tenantID, batchID snowflake.ID) ([]domain.Line, error) {
	var lines []domain.Line
	err := conn.WithContext(ctx).
		Where("tenant_id = ? AND batch_id = ?", tenantID, batchID).
		Order("user_id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) TransitionStatus(ctx context.Context, conn *gorm.DB, tenantID, id snowflake.ID, from, to domain.BatchStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	if to == domain.BatchStatusCompleted {
		updates["processed_at"] = at
	}
	res := conn.WithContext(ctx).
		Model(&domain.Batch{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListBatches pages newest first. Snowflake ids are time ordered, so the id
// alone is a stable cursor.
func (r *repo) ListBatches(ctx context.Context, conn *gorm.DB, tenantID snowflake.ID, status domain.BatchStatus, cursor *pagination.Cursor, limit int) ([]*domain.Batch, error) {
	q := conn.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if cursor != nil && cursor.ID != "" {
		after, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, domain.ErrInvalidRequest
		}
		q = q.Where("id < ?", after)
	}

	var items []*domain.Batch
	err := q.Order("id DESC").
		Limit(limit + 1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
