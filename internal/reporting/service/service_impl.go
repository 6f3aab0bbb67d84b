package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/workbook/internal/cache"
	"github.com/smallbiznis/workbook/internal/clock"
	"github.com/smallbiznis/workbook/internal/config"
	"github.com/smallbiznis/workbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/workbook/internal/observability/metrics"
	"github.com/smallbiznis/workbook/internal/observability/tracing"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/smallbiznis/workbook/internal/reporting/rollup"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	"github.com/smallbiznis/workbook/pkg/db"
	"github.com/smallbiznis/workbook/pkg/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/smallbiznis/workbook/internal/reporting")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Rates         *config.RatesConfigHolder
	Cache         *cache.ReportCache        `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics       `optional:"true"`
	EngineMetrics *obsmetrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	rates         *config.RatesConfigHolder
	cache         *cache.ReportCache
	obsMetrics    *obsmetrics.Metrics
	engineMetrics *obsmetrics.EngineMetrics
}

func NewService(p Params) reportingdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("reporting.service"),
		clock:         p.Clock,
		rates:         p.Rates,
		cache:         p.Cache,
		obsMetrics:    p.ObsMetrics,
		engineMetrics: p.EngineMetrics,
	}
}

// prepare validates req and resolves the tenant scoped filter.
func prepare(ctx context.Context, req any, params scope.Params) (scope.Filter, error) {
	if _, ok := tenantcontext.TenantIDFromContext(ctx); !ok {
		return scope.Filter{}, scope.ErrMissingTenant
	}
	if err := validation.Struct(req); err != nil {
		return scope.Filter{}, err
	}
	return scope.New(ctx, params)
}

// run executes build inside one read snapshot bounded by the configured
// report timeout. out is served from and written to the report cache.
func (s *Service) run(ctx context.Context, report string, f scope.Filter, req any, out any, build func(ctx context.Context, tx *gorm.DB) error) error {
	if s.cache.Get(ctx, f.TenantID(), report, req, out) {
		return nil
	}

	cfg := s.rates.Get()
	ctx, span := tracer.Start(ctx, "report."+report,
		trace.WithAttributes(tracing.SafeAttributes(
			attribute.String("report", report),
			attribute.String("tenant_id", f.TenantID().String()),
		)...),
	)
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, cfg.ReportTimeout)
	defer cancel()

	started := time.Now()
	err := db.ReadSnapshot(runCtx, s.db, func(tx *gorm.DB) error {
		return build(runCtx, tx)
	})
	elapsed := time.Since(started)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s exceeded %s", reportingdomain.ErrReportTimeout, report, cfg.ReportTimeout)
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("report", report),
		zap.Duration("elapsed", elapsed),
	)
	s.engineMetrics.ObserveReport(report, elapsed)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "report failed")
		s.obsMetrics.RecordReport(ctx, report, "error", elapsed)
		s.engineMetrics.IncReportError(report, err)
		if errors.Is(err, rollup.ErrInconsistentRollup) {
			s.engineMetrics.IncInconsistentRollup(report)
			log.Error("rollups disagree", zap.Error(err))
		} else {
			log.Warn("report failed", zap.Error(err))
		}
		return err
	}

	s.obsMetrics.RecordReport(ctx, report, "success", elapsed)
	if cfg.SlowReportAfter > 0 && elapsed > cfg.SlowReportAfter {
		log.Warn("slow report", zap.Duration("threshold", cfg.SlowReportAfter))
	}
	s.cache.Set(ctx, f.TenantID(), report, req, out)
	return nil
}

func (s *Service) TimeSummary(ctx context.Context, req reportingdomain.TimeSummaryRequest) (*reportingdomain.TimeSummaryReport, error) {
	f, err := prepare(ctx, req, req.Params())
	if err != nil {
		return nil, err
	}

	var out reportingdomain.TimeSummaryReport
	err = s.run(ctx, reportingdomain.ReportTimeSummary, f, req, &out, func(ctx context.Context, tx *gorm.DB) error {
		entries, err := rollup.Entries(ctx, tx, f, req.Limit)
		if err != nil {
			return err
		}
		users, err := rollup.ByUser(ctx, tx, f)
		if err != nil {
			return err
		}
		projects, err := rollup.ByProject(ctx, tx, f)
		if err != nil {
			return err
		}
		dates, err := rollup.ByDate(ctx, tx, f, rollup.OrderDesc)
		if err != nil {
			return err
		}
		totals, days, err := rollup.Totals(ctx, tx, f)
		if err != nil {
			return err
		}
		if err := rollup.CheckTimeConsistency(rollup.TimeRollups{
			ByUser:    users,
			ByProject: projects,
			ByDate:    dates,
			Totals:    totals,
		}); err != nil {
			return err
		}

		out = reportingdomain.TimeSummaryReport{
			Data:    entries,
			Summary: timeSummary(totals, days),
			Breakdown: reportingdomain.TimeBreakdown{
				ByUser:    userHours(users),
				ByProject: projectHours(projects),
				ByDate:    dateHours(dates),
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) TeamUtilization(ctx context.Context, req reportingdomain.TimeFilterRequest) (*reportingdomain.TeamUtilizationReport, error) {
	f, err := prepare(ctx, req, req.Params())
	if err != nil {
		return nil, err
	}

	var out reportingdomain.TeamUtilizationReport
	err = s.run(ctx, reportingdomain.ReportTeamUtilization, f, req, &out, func(ctx context.Context, tx *gorm.DB) error {
		users, err := rollup.ByUser(ctx, tx, f)
		if err != nil {
			return err
		}
		projects, err := rollup.ByProject(ctx, tx, f)
		if err != nil {
			return err
		}
		totals, days, err := rollup.Totals(ctx, tx, f)
		if err != nil {
			return err
		}
		if err := rollup.CheckTimeConsistency(rollup.TimeRollups{
			ByUser:    users,
			ByProject: projects,
			Totals:    totals,
		}); err != nil {
			return err
		}

		out = reportingdomain.TeamUtilizationReport{
			Data:      members(users),
			Summary:   teamSummary(totals, days, int64(len(users))),
			Breakdown: reportingdomain.TeamBreakdown{ByProject: projectHours(projects)},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DailyTotals lists one row per worked day. The configured order applies
// unless the request names one.
func (s *Service) DailyTotals(ctx context.Context, req reportingdomain.DailyTotalsRequest) (*reportingdomain.DailyTotalsReport, error) {
	f, err := prepare(ctx, req, req.Params())
	if err != nil {
		return nil, err
	}

	order := rollup.OrderAsc
	if configured, err := rollup.ParseOrder(s.rates.Get().DailyTotalsOrder); err == nil {
		order = configured
	}
	if req.Order != "" {
		order, err = rollup.ParseOrder(req.Order)
		if err != nil {
			return nil, err
		}
	}

	var out reportingdomain.DailyTotalsReport
	err = s.run(ctx, reportingdomain.ReportDailyTotals, f, req, &out, func(ctx context.Context, tx *gorm.DB) error {
		dates, err := rollup.ByDate(ctx, tx, f, order)
		if err != nil {
			return err
		}
		totals, days, err := rollup.Totals(ctx, tx, f)
		if err != nil {
			return err
		}
		if err := rollup.CheckTimeConsistency(rollup.TimeRollups{ByDate: dates, Totals: totals}); err != nil {
			return err
		}

		out = reportingdomain.DailyTotalsReport{
			Data:      dateHours(dates),
			Summary:   dailySummary(totals, days),
			Breakdown: reportingdomain.DailyBreakdown{Order: order},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
