package rollup

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	projectdomain "github.com/smallbiznis/workbook/internal/project/domain"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"gorm.io/gorm"
)

type ProjectRow struct {
	ID     snowflake.ID                `gorm:"column:id"`
	Name   string                      `gorm:"column:name"`
	Status projectdomain.ProjectStatus `gorm:"column:status"`
	Budget *decimal.Decimal            `gorm:"column:budget"`
}

// Projects lists the projects of f ordered by id. An empty status means any.
func Projects(ctx context.Context, db *gorm.DB, f scope.Filter, status projectdomain.ProjectStatus) ([]ProjectRow, error) {
	if err := guard(f); err != nil {
		return nil, err
	}
	q := f.Projects(db.WithContext(ctx)).
		Select("p.id AS id, p.name AS name, p.status AS status, p.budget AS budget").
		Order("p.id ASC")
	if status != "" {
		q = q.Where("p.status = ?", status)
	}

	var rows []ProjectRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if rows == nil {
		rows = []ProjectRow{}
	}
	return rows, nil
}
