// Package domain contains persistence models for projects and tasks.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workbook/pkg/civil"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusArchived  ProjectStatus = "archived"
	ProjectStatusCompleted ProjectStatus = "completed"
)

var ProjectStatuses = []ProjectStatus{ProjectStatusActive, ProjectStatusArchived, ProjectStatusCompleted}

func ParseProjectStatus(raw string) (ProjectStatus, bool) {
	for _, s := range ProjectStatuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

type Project struct {
	ID         snowflake.ID     `json:"id" gorm:"primaryKey"`
	TenantID   snowflake.ID     `json:"tenant_id" gorm:"not null;index"`
	CustomerID *snowflake.ID    `json:"customer_id,omitempty" gorm:"index"`
	Name       string           `json:"name" gorm:"type:text;not null"`
	Status     ProjectStatus    `json:"status" gorm:"type:text;not null;default:'active'"`
	Budget     *decimal.Decimal `json:"budget" gorm:"type:numeric(18,4)"`
	StartDate  *civil.Date      `json:"start_date,omitempty" gorm:"type:date"`
	EndDate    *civil.Date      `json:"end_date,omitempty" gorm:"type:date"`
	CreatedAt  time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Project) TableName() string { return "projects" }

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

var TaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent}

type Task struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	TenantID       snowflake.ID    `json:"tenant_id" gorm:"not null;index"`
	ProjectID      snowflake.ID    `json:"project_id" gorm:"not null;index"`
	AssigneeID     *snowflake.ID   `json:"assignee_id,omitempty" gorm:"index"`
	Title          string          `json:"title" gorm:"type:text;not null"`
	Status         TaskStatus      `json:"status" gorm:"type:text;not null;default:'todo'"`
	Priority       TaskPriority    `json:"priority" gorm:"type:text;not null;default:'medium'"`
	DueDate        *civil.Date     `json:"due_date,omitempty" gorm:"type:date"`
	EstimatedHours decimal.Decimal `json:"estimated_hours" gorm:"type:numeric(10,2);not null;default:0"`
	ActualHours    decimal.Decimal `json:"actual_hours" gorm:"type:numeric(10,2);not null;default:0"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Task) TableName() string { return "tasks" }
