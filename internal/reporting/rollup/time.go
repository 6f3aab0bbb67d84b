// Package rollup computes grouped aggregates over a scope.Filter. Every
// function takes the handle it should read from so that all rollups of one
// report can share a read transaction.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"github.com/smallbiznis/workbook/pkg/civil"
	"gorm.io/gorm"
)

var (
	ErrUnscopedFilter     = errors.New("unscoped_filter")
	ErrInconsistentRollup = errors.New("inconsistent_rollup")
	ErrInvalidOrder       = errors.New("invalid_order")
)

// Order is the presentation order of date based rollups.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

func ParseOrder(raw string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(raw))) {
	case OrderAsc:
		return OrderAsc, nil
	case OrderDesc:
		return OrderDesc, nil
	default:
		return "", ErrInvalidOrder
	}
}

const timeAggregates = `COALESCE(SUM(te.duration_minutes), 0) AS total_minutes,
	COALESCE(SUM(CASE WHEN te.billable THEN te.duration_minutes ELSE 0 END), 0) AS billable_minutes,
	COALESCE(SUM(CASE WHEN te.billable THEN 0 ELSE te.duration_minutes END), 0) AS non_billable_minutes,
	COUNT(te.id) AS entry_count`

// TimeTotals is the aggregate of a set of time entries.
type TimeTotals struct {
	TotalMinutes       int64 `json:"total_minutes" gorm:"column:total_minutes"`
	BillableMinutes    int64 `json:"billable_minutes" gorm:"column:billable_minutes"`
	NonBillableMinutes int64 `json:"non_billable_minutes" gorm:"column:non_billable_minutes"`
	EntryCount         int64 `json:"entry_count" gorm:"column:entry_count"`
}

func (t TimeTotals) add(o TimeTotals) TimeTotals {
	return TimeTotals{
		TotalMinutes:       t.TotalMinutes + o.TotalMinutes,
		BillableMinutes:    t.BillableMinutes + o.BillableMinutes,
		NonBillableMinutes: t.NonBillableMinutes + o.NonBillableMinutes,
		EntryCount:         t.EntryCount + o.EntryCount,
	}
}

type UserTime struct {
	UserID     snowflake.ID `json:"user_id"`
	FullName   string       `json:"full_name"`
	DaysWorked int64        `json:"days_worked"`
	TimeTotals
}

type ProjectTime struct {
	ProjectID   snowflake.ID `json:"project_id"`
	ProjectName string       `json:"project_name"`
	TimeTotals
}

type DateTime struct {
	WorkDate civil.Date `json:"work_date"`
	TimeTotals
}

// UserProjectTime is the (project, user) cross product used for cost rollups.
type UserProjectTime struct {
	ProjectID snowflake.ID
	UserID    snowflake.ID
	TimeTotals
}

type userRow struct {
	UserID             snowflake.ID `gorm:"column:user_id"`
	FullName           string       `gorm:"column:full_name"`
	DaysWorked         int64        `gorm:"column:days_worked"`
	TotalMinutes       int64        `gorm:"column:total_minutes"`
	BillableMinutes    int64        `gorm:"column:billable_minutes"`
	NonBillableMinutes int64        `gorm:"column:non_billable_minutes"`
	EntryCount         int64        `gorm:"column:entry_count"`
}

type projectRow struct {
	ProjectID          snowflake.ID `gorm:"column:project_id"`
	ProjectName        string       `gorm:"column:project_name"`
	TotalMinutes       int64        `gorm:"column:total_minutes"`
	BillableMinutes    int64        `gorm:"column:billable_minutes"`
	NonBillableMinutes int64        `gorm:"column:non_billable_minutes"`
	EntryCount         int64        `gorm:"column:entry_count"`
}

type dateRow struct {
	WorkDate           civil.Date `gorm:"column:work_date"`
	TotalMinutes       int64      `gorm:"column:total_minutes"`
	BillableMinutes    int64      `gorm:"column:billable_minutes"`
	NonBillableMinutes int64      `gorm:"column:non_billable_minutes"`
	EntryCount         int64      `gorm:"column:entry_count"`
}

type userProjectRow struct {
	ProjectID          snowflake.ID `gorm:"column:project_id"`
	UserID             snowflake.ID `gorm:"column:user_id"`
	TotalMinutes       int64        `gorm:"column:total_minutes"`
	BillableMinutes    int64        `gorm:"column:billable_minutes"`
	NonBillableMinutes int64        `gorm:"column:non_billable_minutes"`
	EntryCount         int64        `gorm:"column:entry_count"`
}

func guard(f scope.Filter) error {
	if !f.Valid() {
		return ErrUnscopedFilter
	}
	return nil
}

// ByUser groups time by user, ordered by user id.
func ByUser(ctx context.Context, db *gorm.DB, f scope.Filter) ([]UserTime, error) {
	if err := guard(f); err != nil {
		return nil, err
	}
	var rows []userRow
	err := f.TimeEntries(db.WithContext(ctx)).
		Select(`te.user_id AS user_id,
			COALESCE(u.full_name, '') AS full_name,
			COUNT(DISTINCT te.work_date) AS days_worked,
			` + timeAggregates).
		Joins("LEFT JOIN users u ON u.id = te.user_id").
		Group("te.user_id, u.full_name").
		Order("te.user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rollup by user: %w", err)
	}

	out := make([]UserTime, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserTime{
			UserID:     r.UserID,
			FullName:   r.FullName,
			DaysWorked: r.DaysWorked,
			TimeTotals: TimeTotals{r.TotalMinutes, r.BillableMinutes, r.NonBillableMinutes, r.EntryCount},
		})
	}
	return out, nil
}

// ByProject groups time by project, ordered by project id.
func ByProject(ctx context.Context, db *gorm.DB, f scope.Filter) ([]ProjectTime, error) {
	if err := guard(f); err != nil {
		return nil, err
	}
	var rows []projectRow
	err := f.TimeEntries(db.WithContext(ctx)).
		Select(`te.project_id AS project_id,
			COALESCE(p.name, '') AS project_name,
			` + timeAggregates).
		Joins("LEFT JOIN projects p ON p.id = te.project_id AND p.tenant_id = te.tenant_id").
		Group("te.project_id, p.name").
		Order("te.project_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rollup by project: %w", err)
	}

	out := make([]ProjectTime, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProjectTime{
			ProjectID:   r.ProjectID,
			ProjectName: r.ProjectName,
			TimeTotals:  TimeTotals{r.TotalMinutes, r.BillableMinutes, r.NonBillableMinutes, r.EntryCount},
		})
	}
	return out, nil
}

// ByDate groups time by work date in the requested order.
func ByDate(ctx context.Context, db *gorm.DB, f scope.Filter, order Order) ([]DateTime, error) {
	if err := guard(f); err != nil {
		return nil, err
	}
	direction := "ASC"
	switch order {
	case OrderAsc:
	case OrderDesc:
		direction = "DESC"
	default:
		return nil, ErrInvalidOrder
	}

	var rows []dateRow
	err := f.TimeEntries(db.WithContext(ctx)).
		Select(`te.work_date AS work_date,
			` + timeAggregates).
		Group("te.work_date").
		Order("te.work_date " + direction).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rollup by date: %w", err)
	}

	out := make([]DateTime, 0, len(rows))
	for _, r := range rows {
		out = append(out, DateTime{
			WorkDate:   r.WorkDate,
			TimeTotals: TimeTotals{r.TotalMinutes, r.BillableMinutes, r.NonBillableMinutes, r.EntryCount},
		})
	}
	return out, nil
}

// ByProjectUser groups time by project and user.
func ByProjectUser(ctx context.Context, db *gorm.DB, f scope.Filter) ([]UserProjectTime, error) {
	if err := guard(f); err != nil {
		return nil, err
	}
	var rows []userProjectRow
	err := f.TimeEntries(db.WithContext(ctx)).
		Select(`te.project_id AS project_id, te.user_id AS user_id,
			` + timeAggregates).
		Group("te.project_id, te.user_id").
		Order("te.project_id ASC, te.user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rollup by project and user: %w", err)
	}

	out := make([]UserProjectTime, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserProjectTime{
			ProjectID:  r.ProjectID,
			UserID:     r.UserID,
			TimeTotals: TimeTotals{r.TotalMinutes, r.BillableMinutes, r.NonBillableMinutes, r.EntryCount},
		})
	}
	return out, nil
}

// Totals aggregates every matching entry into one row. Zero rows yield zeros.
func Totals(ctx context.Context, db *gorm.DB, f scope.Filter) (TimeTotals, int64, error) {
	if err := guard(f); err != nil {
		return TimeTotals{}, 0, err
	}
	var row struct {
		TotalMinutes       int64 `gorm:"column:total_minutes"`
		BillableMinutes    int64 `gorm:"column:billable_minutes"`
		NonBillableMinutes int64 `gorm:"column:non_billable_minutes"`
		EntryCount         int64 `gorm:"column:entry_count"`
		DistinctDays       int64 `gorm:"column:distinct_days"`
	}
	err := f.TimeEntries(db.WithContext(ctx)).
		Select(timeAggregates + `,
			COUNT(DISTINCT te.work_date) AS distinct_days`).
		Scan(&row).Error
	if err != nil {
		return TimeTotals{}, 0, fmt.Errorf("rollup totals: %w", err)
	}
	return TimeTotals{row.TotalMinutes, row.BillableMinutes, row.NonBillableMinutes, row.EntryCount}, row.DistinctDays, nil
}

// EntryRow is one detail row of the time summary.
type EntryRow struct {
	ID              snowflake.ID  `json:"id" gorm:"column:id"`
	WorkDate        civil.Date    `json:"work_date" gorm:"column:work_date"`
	UserID          snowflake.ID  `json:"user_id" gorm:"column:user_id"`
	UserName        string        `json:"user_name" gorm:"column:user_name"`
	ProjectID       snowflake.ID  `json:"project_id" gorm:"column:project_id"`
	ProjectName     string        `json:"project_name" gorm:"column:project_name"`
	TaskID          *snowflake.ID `json:"task_id,omitempty" gorm:"column:task_id"`
	DurationMinutes int64         `json:"duration_minutes" gorm:"column:duration_minutes"`
	Billable        bool          `json:"billable" gorm:"column:billable"`
	Description     string        `json:"description" gorm:"column:description"`
}

// Entries lists detail rows newest first. limit <= 0 means no limit.
func Entries(ctx context.Context, db *gorm.DB, f scope.Filter, limit int) ([]EntryRow, error) {
	if err := guard(f); err != nil {
		return nil, err
	}
	q := f.TimeEntries(db.WithContext(ctx)).
		Select(`te.id AS id, te.work_date AS work_date, te.user_id AS user_id,
			COALESCE(u.full_name, '') AS user_name,
			te.project_id AS project_id, COALESCE(p.name, '') AS project_name,
			te.task_id AS task_id, te.duration_minutes AS duration_minutes,
			te.billable AS billable, COALESCE(te.description, '') AS description`).
		Joins("LEFT JOIN users u ON u.id = te.user_id").
		Joins("LEFT JOIN projects p ON p.id = te.project_id AND p.tenant_id = te.tenant_id").
		Order("te.work_date DESC, te.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []EntryRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if rows == nil {
		rows = []EntryRow{}
	}
	return rows, nil
}
