package rollup

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	projectdomain "github.com/smallbiznis/workbook/internal/project/domain"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"github.com/smallbiznis/workbook/pkg/civil"
	"gorm.io/gorm"
)

// TaskCounts groups tasks by status and by priority independently.
type TaskCounts struct {
	Total          int64                                `json:"total"`
	Completed      int64                                `json:"completed"`
	Overdue        int64                                `json:"overdue"`
	ByStatus       map[projectdomain.TaskStatus]int64   `json:"by_status"`
	ByPriority     map[projectdomain.TaskPriority]int64 `json:"by_priority"`
	EstimatedHours decimal.Decimal                      `json:"estimated_hours"`
	ActualHours    decimal.Decimal                      `json:"actual_hours"`
}

type taskGroupRow struct {
	Key            string          `gorm:"column:group_key"`
	TaskCount      int64           `gorm:"column:task_count"`
	Overdue        int64           `gorm:"column:overdue"`
	EstimatedHours decimal.Decimal `gorm:"column:estimated_hours"`
	ActualHours    decimal.Decimal `gorm:"column:actual_hours"`
}

const taskAggregates = `COUNT(t.id) AS task_count,
	COALESCE(SUM(CASE WHEN t.status <> 'done' AND t.due_date IS NOT NULL AND t.due_date < ? THEN 1 ELSE 0 END), 0) AS overdue,
	COALESCE(SUM(t.estimated_hours), 0) AS estimated_hours,
	COALESCE(SUM(t.actual_hours), 0) AS actual_hours`

// Tasks counts tasks in f. Overdue means not done and due strictly before today.
// Every status and priority appears in the maps, zero when absent.
func Tasks(ctx context.Context, db *gorm.DB, f scope.Filter, today civil.Date) (TaskCounts, error) {
	if err := guard(f); err != nil {
		return TaskCounts{}, err
	}

	out := TaskCounts{
		ByStatus:       make(map[projectdomain.TaskStatus]int64, len(projectdomain.TaskStatuses)),
		ByPriority:     make(map[projectdomain.TaskPriority]int64, len(projectdomain.TaskPriorities)),
		EstimatedHours: decimal.Zero,
		ActualHours:    decimal.Zero,
	}
	for _, s := range projectdomain.TaskStatuses {
		out.ByStatus[s] = 0
	}
	for _, p := range projectdomain.TaskPriorities {
		out.ByPriority[p] = 0
	}

	var statusRows []taskGroupRow
	err := f.Tasks(db.WithContext(ctx)).
		Select("t.status AS group_key, "+taskAggregates, today).
		Group("t.status").
		Scan(&statusRows).Error
	if err != nil {
		return TaskCounts{}, fmt.Errorf("rollup tasks by status: %w", err)
	}

	var priorityRows []taskGroupRow
	err = f.Tasks(db.WithContext(ctx)).
		Select("t.priority AS group_key, "+taskAggregates, today).
		Group("t.priority").
		Scan(&priorityRows).Error
	if err != nil {
		return TaskCounts{}, fmt.Errorf("rollup tasks by priority: %w", err)
	}

	for _, r := range statusRows {
		status := projectdomain.TaskStatus(r.Key)
		out.ByStatus[status] += r.TaskCount
		out.Total += r.TaskCount
		out.Overdue += r.Overdue
		out.EstimatedHours = out.EstimatedHours.Add(r.EstimatedHours)
		out.ActualHours = out.ActualHours.Add(r.ActualHours)
		if status == projectdomain.TaskStatusDone {
			out.Completed += r.TaskCount
		}
	}

	var priorityTotal int64
	for _, r := range priorityRows {
		out.ByPriority[projectdomain.TaskPriority(r.Key)] += r.TaskCount
		priorityTotal += r.TaskCount
	}
	if priorityTotal != out.Total {
		return TaskCounts{}, fmt.Errorf("%w: tasks by priority %d != by status %d", ErrInconsistentRollup, priorityTotal, out.Total)
	}

	return out, nil
}

// ProjectTasks is the per project task aggregate.
type ProjectTasks struct {
	ProjectID      snowflake.ID
	Total          int64
	Completed      int64
	EstimatedHours decimal.Decimal
	ActualHours    decimal.Decimal
}

type projectTaskRow struct {
	ProjectID      snowflake.ID    `gorm:"column:project_id"`
	TaskCount      int64           `gorm:"column:task_count"`
	Completed      int64           `gorm:"column:completed"`
	EstimatedHours decimal.Decimal `gorm:"column:estimated_hours"`
	ActualHours    decimal.Decimal `gorm:"column:actual_hours"`
}

// TasksByProject aggregates tasks per project, keyed by project id.
func TasksByProject(ctx context.Context, db *gorm.DB, f scope.Filter) (map[snowflake.ID]ProjectTasks, error) {
	if err := guard(f); err != nil {
		return nil, err
	}
	var rows []projectTaskRow
	err := f.Tasks(db.WithContext(ctx)).
		Select(`t.project_id AS project_id,
			COUNT(t.id) AS task_count,
			COALESCE(SUM(CASE WHEN t.status = 'done' THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(t.estimated_hours), 0) AS estimated_hours,
			COALESCE(SUM(t.actual_hours), 0) AS actual_hours`).
		Group("t.project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rollup tasks by project: %w", err)
	}

	out := make(map[snowflake.ID]ProjectTasks, len(rows))
	for _, r := range rows {
		out[r.ProjectID] = ProjectTasks{
			ProjectID:      r.ProjectID,
			Total:          r.TaskCount,
			Completed:      r.Completed,
			EstimatedHours: r.EstimatedHours,
			ActualHours:    r.ActualHours,
		}
	}
	return out, nil
}
