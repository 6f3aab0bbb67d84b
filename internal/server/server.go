package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/workbook/internal/authorization"
	"github.com/smallbiznis/workbook/internal/clock"
	"github.com/smallbiznis/workbook/internal/config"
	"github.com/smallbiznis/workbook/internal/observability"
	obsmiddleware "github.com/smallbiznis/workbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/workbook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/workbook/internal/observability/tracing"
	"github.com/smallbiznis/workbook/internal/payment"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	"github.com/smallbiznis/workbook/internal/payroll"
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
	"github.com/smallbiznis/workbook/internal/ratelimit"
	"github.com/smallbiznis/workbook/internal/reporting"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/smallbiznis/workbook/internal/timesheet"
	timesheetdomain "github.com/smallbiznis/workbook/internal/timesheet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	ratelimit.Module,
	payment.Module,
	payroll.Module,
	reporting.Module,
	timesheet.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	clock         clock.Clock
	authzSvc      authorization.Service
	reportingSvc  reportingdomain.Service
	payrollSvc    payrolldomain.Service
	paymentSvc    paymentdomain.Service
	timesheetSvc  timesheetdomain.Service
	reportLimiter *ratelimit.ReportLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Clock         clock.Clock
	AuthzSvc      authorization.Service
	ReportingSvc  reportingdomain.Service
	PayrollSvc    payrolldomain.Service
	PaymentSvc    paymentdomain.Service
	TimesheetSvc  timesheetdomain.Service
	ReportLimiter *ratelimit.ReportLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		clock:         p.Clock,
		authzSvc:      p.AuthzSvc,
		reportingSvc:  p.ReportingSvc,
		payrollSvc:    p.PayrollSvc,
		paymentSvc:    p.PaymentSvc,
		timesheetSvc:  p.TimesheetSvc,
		reportLimiter: p.ReportLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.TenantContext())

	reports := api.Group("/reports", s.ReportRateLimit())
	reports.GET("/time-summary", s.authorizeReport(authorization.ObjectTimeReport), s.TimeSummary)
	reports.GET("/team-utilization", s.authorizeReport(authorization.ObjectTimeReport), s.TeamUtilization)
	reports.GET("/daily-totals", s.authorizeReport(authorization.ObjectTimeReport), s.DailyTotals)
	reports.GET("/task-statistics", s.authorizeReport(authorization.ObjectTaskReport), s.TaskStatistics)
	reports.GET("/project-progress", s.authorizeReport(authorization.ObjectProjectReport), s.ProjectProgress)
	reports.GET("/project-budget", s.authorizeReport(authorization.ObjectFinancialReport), s.ProjectBudget)
	reports.GET("/invoices-payments", s.authorizeReport(authorization.ObjectFinancialReport), s.InvoicesPayments)

	payroll := api.Group("/payroll")
	payroll.GET("/preview", s.authorizeTenantAction(authorization.ObjectPayroll, authorization.ActionPayrollPreview), s.PreviewPayroll)
	payroll.GET("/batches", s.authorizeTenantAction(authorization.ObjectPayroll, authorization.ActionPayrollView), s.ListPayrollBatches)
	payroll.POST("/batches", s.authorizeTenantAction(authorization.ObjectPayroll, authorization.ActionPayrollCreate), s.CreatePayrollBatch)
	payroll.GET("/batches/:id", s.authorizeTenantAction(authorization.ObjectPayroll, authorization.ActionPayrollView), s.GetPayrollBatch)
	payroll.POST("/batches/:id/process", s.authorizeTenantAction(authorization.ObjectPayroll, authorization.ActionPayrollProcess), s.ProcessPayrollBatch)

	api.POST("/payments", s.authorizeTenantAction(authorization.ObjectPayment, authorization.ActionPaymentRecord), s.RecordPayment)
	api.GET("/invoices/:id/payments", s.authorizeTenantAction(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListInvoicePayments)

	timesheets := api.Group("/timesheets/:id")
	timesheets.POST("/submit", s.authorizeTenantAction(authorization.ObjectTimesheet, authorization.ActionTimesheetSubmit), s.TransitionTimesheet(timesheetdomain.StatusSubmitted))
	timesheets.POST("/approve", s.authorizeTenantAction(authorization.ObjectTimesheet, authorization.ActionTimesheetReview), s.TransitionTimesheet(timesheetdomain.StatusApproved))
	timesheets.POST("/reject", s.authorizeTenantAction(authorization.ObjectTimesheet, authorization.ActionTimesheetReview), s.TransitionTimesheet(timesheetdomain.StatusRejected))
	timesheets.POST("/reopen", s.authorizeTenantAction(authorization.ObjectTimesheet, authorization.ActionTimesheetReview), s.TransitionTimesheet(timesheetdomain.StatusReopened))
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
