package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workbook/internal/clock"
	"github.com/smallbiznis/workbook/internal/config"
	obsmetrics "github.com/smallbiznis/workbook/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
	"github.com/smallbiznis/workbook/internal/reporting/calc"
	"github.com/smallbiznis/workbook/internal/reporting/rollup"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	"github.com/smallbiznis/workbook/pkg/civil"
	"github.com/smallbiznis/workbook/pkg/db/pagination"
	"github.com/smallbiznis/workbook/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Rates         *config.RatesConfigHolder
	Repo          payrolldomain.Repository
	Payments      payrolldomain.PaymentWriter
	Locker        payrolldomain.BatchLocker `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics       `optional:"true"`
	EngineMetrics *obsmetrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	rates         *config.RatesConfigHolder
	repo          payrolldomain.Repository
	payments      payrolldomain.PaymentWriter
	locker        payrolldomain.BatchLocker
	obsMetrics    *obsmetrics.Metrics
	engineMetrics *obsmetrics.EngineMetrics
}

func NewService(p Params) payrolldomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payroll.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		rates:         p.Rates,
		repo:          p.Repo,
		payments:      p.Payments,
		locker:        p.Locker,
		obsMetrics:    p.ObsMetrics,
		engineMetrics: p.EngineMetrics,
	}
}

// Calculate prices billable time for the period without writing anything.
func (s *Service) Calculate(ctx context.Context, req payrolldomain.PreviewRequest) (*payrolldomain.Preview, error) {
	if _, ok := tenantcontext.TenantIDFromContext(ctx); !ok {
		return nil, payrolldomain.ErrInvalidTenant
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var preview *payrolldomain.Preview
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		preview, err = s.calculate(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return preview, nil
}

func (s *Service) calculate(ctx context.Context, tx *gorm.DB, req payrolldomain.PreviewRequest) (*payrolldomain.Preview, error) {
	billable := true
	start, end := req.StartDate, req.EndDate
	f, err := scope.New(ctx, scope.Params{StartDate: &start, EndDate: &end, Billable: &billable})
	if err != nil {
		if errors.Is(err, scope.ErrInvalidRange) {
			return nil, payrolldomain.ErrInvalidRange
		}
		return nil, err
	}

	users, err := rollup.ByUser(ctx, tx, f)
	if err != nil {
		return nil, err
	}
	inputs, err := rollup.Rates(ctx, tx, f)
	if err != nil {
		return nil, err
	}
	resolver := calc.NewRateResolver(s.rates.Get().DefaultHourlyRate, inputs.TenantDefault, inputs.UserRates)

	wanted := make(map[snowflake.ID]struct{}, len(req.UserIDs))
	for _, id := range req.UserIDs {
		wanted[id] = struct{}{}
	}

	preview := &payrolldomain.Preview{
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Lines:       []payrolldomain.PreviewLine{},
		TotalHours:  decimal.Zero,
		TotalAmount: decimal.Zero,
	}
	for _, u := range users {
		if len(wanted) > 0 {
			if _, ok := wanted[u.UserID]; !ok {
				continue
			}
		}
		if u.BillableMinutes == 0 {
			continue
		}
		rate, source := resolver.Resolve(u.UserID)
		// A line pays for the hours it shows: total is always hours × rate.
		hours := calc.Display(calc.Hours(u.BillableMinutes))
		line := payrolldomain.PreviewLine{
			UserID:          u.UserID,
			FullName:        u.FullName,
			BillableMinutes: u.BillableMinutes,
			BillableHours:   hours,
			HourlyRate:      rate,
			RateSource:      string(source),
			TotalAmount:     calc.Display(hours.Mul(rate)),
		}
		preview.Lines = append(preview.Lines, line)
		preview.TotalMinutes += line.BillableMinutes
		preview.TotalHours = preview.TotalHours.Add(line.BillableHours)
		preview.TotalAmount = preview.TotalAmount.Add(line.TotalAmount)
	}
	sort.Slice(preview.Lines, func(i, j int) bool {
		return preview.Lines[i].UserID < preview.Lines[j].UserID
	})
	return preview, nil
}

// CreateBatch stores the preview of the period as a draft batch. The preview
// is computed on the same transaction that writes it.
func (s *Service) CreateBatch(ctx context.Context, req payrolldomain.CreateBatchRequest) (*payrolldomain.BatchDetail, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return nil, payrolldomain.ErrInvalidTenant
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var detail payrolldomain.BatchDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		preview, err := s.calculate(ctx, tx, req.PreviewRequest)
		if err != nil {
			return err
		}

		batch := payrolldomain.Batch{
			ID:          s.genID.Generate(),
			TenantID:    tenantID,
			PeriodStart: preview.StartDate,
			PeriodEnd:   preview.EndDate,
			Status:      payrolldomain.BatchStatusDraft,
			LineCount:   len(preview.Lines),
			TotalAmount: preview.TotalAmount,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if ref := strings.TrimSpace(req.Reference); ref != "" {
			batch.Reference = &ref
		}
		if actor, ok := tenantcontext.ActorFromContext(ctx); ok && actor.UserID != 0 {
			createdBy := actor.UserID
			batch.CreatedBy = &createdBy
		}
		batch.Metadata, err = rateSnapshot(preview)
		if err != nil {
			return err
		}

		lines := make([]payrolldomain.Line, 0, len(preview.Lines))
		for _, pl := range preview.Lines {
			lines = append(lines, payrolldomain.Line{
				ID:              s.genID.Generate(),
				TenantID:        tenantID,
				BatchID:         batch.ID,
				UserID:          pl.UserID,
				BillableMinutes: pl.BillableMinutes,
				BillableHours:   pl.BillableHours,
				HourlyRate:      pl.HourlyRate,
				RateSource:      pl.RateSource,
				TotalAmount:     pl.TotalAmount,
				CreatedAt:       now,
			})
		}
		if err := s.repo.InsertBatch(ctx, tx, &batch, lines); err != nil {
			return err
		}
		detail = payrolldomain.BatchDetail{Batch: batch, Lines: lines}
		return nil
	})
	if err != nil {
		s.obsMetrics.RecordPayrollBatch(ctx, "create", "error", 0)
		return nil, err
	}

	s.obsMetrics.RecordPayrollBatch(ctx, "create", "success", len(detail.Lines))
	s.log.Info("payroll batch created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("batch_id", detail.Batch.ID.String()),
		zap.Int("lines", len(detail.Lines)),
		zap.String("total_amount", detail.Batch.TotalAmount.String()),
	)
	return &detail, nil
}

// ProcessBatch pays every line of a draft batch. The whole run is one
// transaction: on any failure no payment survives and the batch stays draft.
func (s *Service) ProcessBatch(ctx context.Context, id snowflake.ID) (*payrolldomain.ProcessResult, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return nil, payrolldomain.ErrInvalidTenant
	}

	if s.locker != nil {
		release, acquired, err := s.locker.LockBatch(ctx, tenantID, id)
		switch {
		case err != nil:
			s.log.Warn("batch lock unavailable, relying on status guard",
				zap.String("batch_id", id.String()),
				zap.Error(err),
			)
		case !acquired:
			return nil, payrolldomain.ErrBatchLocked
		}
		defer release(context.WithoutCancel(ctx))
	}

	now := s.clock.Now()
	var result payrolldomain.ProcessResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.repo.FindBatch(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if !payrolldomain.CanTransition(batch.Status, payrolldomain.BatchStatusProcessing) {
			return payrolldomain.ErrInvalidTransition
		}
		moved, err := s.repo.TransitionStatus(ctx, tx, tenantID, id, payrolldomain.BatchStatusDraft, payrolldomain.BatchStatusProcessing, now)
		if err != nil {
			return err
		}
		if !moved {
			return payrolldomain.ErrInvalidTransition
		}

		lines, err := s.repo.ListLines(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}

		payments := make([]paymentdomain.Payment, 0, len(lines))
		for _, line := range lines {
			payment := paymentdomain.Payment{
				ID:             s.genID.Generate(),
				TenantID:       tenantID,
				UserID:         line.UserID,
				PayrollBatchID: &batch.ID,
				Amount:         line.TotalAmount,
				FeeAmount:      decimal.Zero,
				NetAmount:      line.TotalAmount,
				Status:         paymentdomain.PaymentStatusCompleted,
				PaymentDate:    civil.DateOf(now),
				Method:         paymentdomain.MethodPayroll,
				CreatedAt:      now,
			}
			if err := s.payments.Insert(ctx, tx, &payment); err != nil {
				return fmt.Errorf("%w: line %s: %w", payrolldomain.ErrBatchProcessing, line.ID, err)
			}
			payments = append(payments, payment)
		}

		moved, err = s.repo.TransitionStatus(ctx, tx, tenantID, id, payrolldomain.BatchStatusProcessing, payrolldomain.BatchStatusCompleted, now)
		if err != nil {
			return err
		}
		if !moved {
			return payrolldomain.ErrInvalidTransition
		}

		batch.Status = payrolldomain.BatchStatusCompleted
		batch.ProcessedAt = &now
		batch.UpdatedAt = now
		result = payrolldomain.ProcessResult{Batch: *batch, Payments: payments}
		return nil
	})
	if err != nil {
		s.engineMetrics.IncBatchError(err)
		s.obsMetrics.RecordPayrollBatch(ctx, "process", "error", 0)
		s.log.Warn("payroll batch processing failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("batch_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.engineMetrics.IncBatchTransition(string(payrolldomain.BatchStatusDraft), string(payrolldomain.BatchStatusProcessing))
	s.engineMetrics.IncBatchTransition(string(payrolldomain.BatchStatusProcessing), string(payrolldomain.BatchStatusCompleted))
	s.obsMetrics.RecordPayrollBatch(ctx, "process", "success", len(result.Payments))
	s.log.Info("payroll batch processed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("batch_id", id.String()),
		zap.Int("payments", len(result.Payments)),
	)
	return &result, nil
}

func (s *Service) GetBatch(ctx context.Context, id snowflake.ID) (*payrolldomain.BatchDetail, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return nil, payrolldomain.ErrInvalidTenant
	}
	batch, err := s.repo.FindBatch(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []payrolldomain.Line{}
	}
	return &payrolldomain.BatchDetail{Batch: *batch, Lines: lines}, nil
}

func (s *Service) ListBatches(ctx context.Context, req payrolldomain.ListBatchesRequest) (*payrolldomain.ListBatchesResponse, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return nil, payrolldomain.ErrInvalidTenant
	}

	var status payrolldomain.BatchStatus
	if req.Status != "" {
		parsed, ok := payrolldomain.ParseBatchStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if !ok {
			return nil, payrolldomain.ErrInvalidStatus
		}
		status = parsed
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 10
	}
	if err := validation.Struct(pagination.Pagination{PageToken: req.PageToken, PageSize: limit}); err != nil {
		return nil, err
	}

	var cursor *pagination.Cursor
	if req.PageToken != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, payrolldomain.ErrInvalidRequest
		}
		cursor = decoded
	}

	items, err := s.repo.ListBatches(ctx, s.db, tenantID, status, cursor, limit)
	if err != nil {
		return nil, err
	}

	page, info := pagination.BuildCursorPageInfo(items, limit, func(b *payrolldomain.Batch) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        b.ID.String(),
			CreatedAt: b.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	batches := make([]payrolldomain.Batch, 0, len(page))
	for _, b := range page {
		batches = append(batches, *b)
	}
	return &payrolldomain.ListBatchesResponse{Batches: batches, PageInfo: info}, nil
}

type rateSnapshotEntry struct {
	UserID     string `json:"user_id"`
	HourlyRate string `json:"hourly_rate"`
	Source     string `json:"source"`
}

func rateSnapshot(preview *payrolldomain.Preview) (datatypes.JSON, error) {
	entries := make([]rateSnapshotEntry, 0, len(preview.Lines))
	for _, l := range preview.Lines {
		entries = append(entries, rateSnapshotEntry{
			UserID:     l.UserID.String(),
			HourlyRate: l.HourlyRate.String(),
			Source:     l.RateSource,
		})
	}
	raw, err := json.Marshal(map[string]any{"rates": entries})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
