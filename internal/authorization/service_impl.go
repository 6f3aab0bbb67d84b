package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, tenantID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ErrInvalidTenant
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName, err := s.resolveRole(ctx, actor, tenantID)
	if err != nil {
		s.logDenied(actor, tenantID, object, action, err)
		return err
	}

	domain := fmt.Sprintf("tenant:%s", tenantID)
	if err := s.ensureGrouping(actor, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.logDenied(actor, tenantID, object, action, ErrForbidden)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveRole(ctx context.Context, actor string, tenantID string) (string, error) {
	if !strings.HasPrefix(actor, "user:") {
		return "", ErrInvalidActor
	}
	userID, err := snowflake.ParseString(strings.TrimPrefix(actor, "user:"))
	if err != nil || userID == 0 {
		return "", ErrInvalidActor
	}
	parsedTenantID, err := snowflake.ParseString(tenantID)
	if err != nil || parsedTenantID == 0 {
		return "", ErrInvalidTenant
	}

	role, err := s.roleForUser(ctx, parsedTenantID, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("role:%s", role), nil
}

func (s *ServiceImpl) roleForUser(ctx context.Context, tenantID, userID snowflake.ID) (tenantcontext.Role, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM tenant_members
		 WHERE tenant_id = ? AND user_id = ?
		 LIMIT 1`,
		tenantID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role, ok := tenantcontext.ParseRole(row.Role)
	if !ok {
		return "", ErrForbidden
	}
	return role, nil
}

// ensureGrouping keeps exactly one role link per subject and domain, so a
// changed membership role replaces the cached one.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) logDenied(actor, tenantID, object, action string, reason error) {
	s.log.Info("authorization denied",
		zap.String("actor", actor),
		zap.String("tenant_id", tenantID),
		zap.String("object", object),
		zap.String("action", action),
		zap.Error(reason),
	)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	reportObjects := []string{ObjectTimeReport, ObjectTaskReport, ObjectProjectReport, ObjectFinancialReport}
	payrollActions := []string{ActionPayrollPreview, ActionPayrollView, ActionPayrollCreate, ActionPayrollProcess}

	var policies [][]string
	for _, role := range []tenantcontext.Role{tenantcontext.RoleOwner, tenantcontext.RoleAdmin} {
		subject := "role:" + string(role)
		for _, object := range reportObjects {
			policies = append(policies,
				[]string{subject, object, ActionReportView},
				[]string{subject, object, ActionReportExport},
			)
		}
		for _, action := range payrollActions {
			policies = append(policies, []string{subject, ObjectPayroll, action})
		}
		policies = append(policies,
			[]string{subject, ObjectPayment, ActionPaymentRecord},
			[]string{subject, ObjectPayment, ActionPaymentView},
		)
	}

	// Managers see operational reports only.
	for _, object := range []string{ObjectTimeReport, ObjectTaskReport, ObjectProjectReport} {
		policies = append(policies,
			[]string{"role:manager", object, ActionReportView},
			[]string{"role:manager", object, ActionReportExport},
		)
	}

	for _, role := range []tenantcontext.Role{tenantcontext.RoleOwner, tenantcontext.RoleAdmin, tenantcontext.RoleManager, tenantcontext.RoleMember} {
		policies = append(policies, []string{"role:" + string(role), ObjectTimesheet, ActionTimesheetSubmit})
		if role != tenantcontext.RoleMember {
			policies = append(policies, []string{"role:" + string(role), ObjectTimesheet, ActionTimesheetReview})
		}
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
