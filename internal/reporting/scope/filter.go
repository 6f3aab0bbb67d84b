// Package scope builds the single tenant-scoped filter that every rollup of a
// report request is derived from.
package scope

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	"github.com/smallbiznis/workbook/pkg/civil"
	"gorm.io/gorm"
)

var (
	ErrMissingTenant = errors.New("missing_tenant")
	ErrInvalidRange  = errors.New("invalid_date_range")
)

// Params are the client-controlled parts of a filter. The tenant is never
// part of it.
type Params struct {
	UserID    *snowflake.ID
	ProjectID *snowflake.ID
	StartDate *civil.Date
	EndDate   *civil.Date
	Billable  *bool
}

// Filter is an immutable, validated filter descriptor. Build one with New.
type Filter struct {
	tenantID  snowflake.ID
	userID    *snowflake.ID
	projectID *snowflake.ID
	startDate *civil.Date
	endDate   *civil.Date
	billable  *bool
}

// New resolves the tenant from ctx and validates p. A reversed range is an
// error, never swapped.
func New(ctx context.Context, p Params) (Filter, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return Filter{}, ErrMissingTenant
	}
	if p.StartDate != nil && p.EndDate != nil && p.StartDate.After(*p.EndDate) {
		return Filter{}, ErrInvalidRange
	}

	return Filter{
		tenantID:  tenantID,
		userID:    copyID(p.UserID),
		projectID: copyID(p.ProjectID),
		startDate: copyDate(p.StartDate),
		endDate:   copyDate(p.EndDate),
		billable:  copyBool(p.Billable),
	}, nil
}

func (f Filter) TenantID() snowflake.ID { return f.tenantID }

func (f Filter) UserID() *snowflake.ID { return copyID(f.userID) }

func (f Filter) ProjectID() *snowflake.ID { return copyID(f.projectID) }

func (f Filter) StartDate() *civil.Date { return copyDate(f.startDate) }

func (f Filter) EndDate() *civil.Date { return copyDate(f.endDate) }

func (f Filter) Billable() *bool { return copyBool(f.billable) }

// WithUser narrows a copy of the filter to a single user.
func (f Filter) WithUser(userID snowflake.ID) Filter {
	out := f
	out.userID = &userID
	return out
}

// Valid reports whether the filter came from New.
func (f Filter) Valid() bool { return f.tenantID != 0 }

// TimeEntries returns a fresh query over time_entries aliased "te" with every
// predicate of f applied.
func (f Filter) TimeEntries(db *gorm.DB) *gorm.DB {
	q := fresh(db).Table("time_entries AS te").Where("te.tenant_id = ?", f.tenantID)
	if f.userID != nil {
		q = q.Where("te.user_id = ?", *f.userID)
	}
	if f.projectID != nil {
		q = q.Where("te.project_id = ?", *f.projectID)
	}
	if f.startDate != nil {
		q = q.Where("te.work_date >= ?", *f.startDate)
	}
	if f.endDate != nil {
		q = q.Where("te.work_date <= ?", *f.endDate)
	}
	if f.billable != nil {
		q = q.Where("te.billable = ?", *f.billable)
	}
	return q
}

// Tasks returns a fresh query over tasks aliased "t". The user predicate
// matches the assignee and the date range applies to the creation date.
func (f Filter) Tasks(db *gorm.DB) *gorm.DB {
	q := fresh(db).Table("tasks AS t").Where("t.tenant_id = ?", f.tenantID)
	if f.userID != nil {
		q = q.Where("t.assignee_id = ?", *f.userID)
	}
	if f.projectID != nil {
		q = q.Where("t.project_id = ?", *f.projectID)
	}
	if f.startDate != nil {
		q = q.Where("t.created_at >= ?", f.startDate.Time())
	}
	if f.endDate != nil {
		q = q.Where("t.created_at < ?", f.endDate.AddDays(1).Time())
	}
	return q
}

// Projects returns a fresh query over projects aliased "p".
func (f Filter) Projects(db *gorm.DB) *gorm.DB {
	q := fresh(db).Table("projects AS p").Where("p.tenant_id = ?", f.tenantID)
	if f.projectID != nil {
		q = q.Where("p.id = ?", *f.projectID)
	}
	return q
}

// Invoices returns a fresh query over invoices aliased "i"; the range applies
// to the issue date.
func (f Filter) Invoices(db *gorm.DB) *gorm.DB {
	q := fresh(db).Table("invoices AS i").Where("i.tenant_id = ?", f.tenantID)
	if f.userID != nil {
		q = q.Where("i.user_id = ?", *f.userID)
	}
	if f.startDate != nil {
		q = q.Where("i.issue_date >= ?", *f.startDate)
	}
	if f.endDate != nil {
		q = q.Where("i.issue_date <= ?", *f.endDate)
	}
	return q
}

// Payments returns a fresh query over payments aliased "pm"; the range applies
// to the payment date.
func (f Filter) Payments(db *gorm.DB) *gorm.DB {
	q := fresh(db).Table("payments AS pm").Where("pm.tenant_id = ?", f.tenantID)
	if f.userID != nil {
		q = q.Where("pm.user_id = ?", *f.userID)
	}
	if f.startDate != nil {
		q = q.Where("pm.payment_date >= ?", *f.startDate)
	}
	if f.endDate != nil {
		q = q.Where("pm.payment_date <= ?", *f.endDate)
	}
	return q
}

func fresh(db *gorm.DB) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true})
}

func copyID(v *snowflake.ID) *snowflake.ID {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyDate(v *civil.Date) *civil.Date {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
