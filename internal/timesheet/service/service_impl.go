package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/workbook/internal/clock"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	timesheetdomain "github.com/smallbiznis/workbook/internal/timesheet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p Params) timesheetdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("timesheet.service"),
		clock: p.Clock,
	}
}

// Transition moves a timesheet along the approval workflow. The update is
// conditional on the status that was read, so two reviewers racing on the same
// sheet cannot both win.
func (s *Service) Transition(ctx context.Context, req timesheetdomain.TransitionRequest) (*timesheetdomain.Timesheet, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return nil, timesheetdomain.ErrInvalidTenant
	}

	var sheet timesheetdomain.Timesheet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, req.TimesheetID).First(&sheet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return timesheetdomain.ErrTimesheetNotFound
			}
			return err
		}

		from := sheet.Status
		if !timesheetdomain.CanTransition(from, req.To) {
			return timesheetdomain.ErrInvalidTransition
		}

		updates := map[string]any{
			"status":     req.To,
			"updated_at": s.clock.Now(),
		}
		if req.To == timesheetdomain.StatusApproved || req.To == timesheetdomain.StatusRejected {
			actor, ok := tenantcontext.ActorFromContext(ctx)
			if !ok || actor.UserID == 0 {
				return timesheetdomain.ErrReviewerRequired
			}
			updates["reviewed_by"] = actor.UserID
		}
		if note := strings.TrimSpace(req.Note); note != "" {
			updates["note"] = note
		}

		res := tx.Model(&timesheetdomain.Timesheet{}).
			Where("tenant_id = ? AND id = ? AND status = ?", tenantID, sheet.ID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return timesheetdomain.ErrConcurrentUpdate
		}

		return tx.Where("id = ?", sheet.ID).First(&sheet).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("timesheet transitioned",
		zap.String("tenant_id", tenantID.String()),
		zap.String("timesheet_id", sheet.ID.String()),
		zap.String("status", string(sheet.Status)),
	)
	return &sheet, nil
}
