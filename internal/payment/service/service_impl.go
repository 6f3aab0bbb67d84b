package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workbook/internal/clock"
	obsmetrics "github.com/smallbiznis/workbook/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	"github.com/smallbiznis/workbook/pkg/civil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Record stores a completed payment and, when it references an invoice,
// raises that invoice's amount paid in the same transaction. Invoice status is
// left to the invoicing workflow.
func (s *Service) Record(ctx context.Context, req paymentdomain.RecordRequest) (*paymentdomain.Payment, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return nil, paymentdomain.ErrInvalidTenant
	}
	if err := validateRecord(&req); err != nil {
		return nil, err
	}
	if req.PaymentDate.IsZero() {
		req.PaymentDate = civil.DateOf(s.clock.Now())
	}

	payment := paymentdomain.Payment{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		InvoiceID:   req.InvoiceID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		FeeAmount:   req.FeeAmount,
		NetAmount:   req.Amount.Sub(req.FeeAmount),
		Status:      paymentdomain.PaymentStatusCompleted,
		PaymentDate: req.PaymentDate,
		Method:      req.Method,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.InvoiceID != nil {
			updated, err := s.repo.IncrementInvoicePaid(ctx, tx, tenantID, *req.InvoiceID, req.Amount)
			if err != nil {
				return err
			}
			if !updated {
				return paymentdomain.ErrInvoiceMissing
			}
		}
		return s.repo.Insert(ctx, tx, &payment)
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordPaymentCreated(ctx, payment.Method)
	s.log.Info("payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("method", payment.Method),
	)
	return &payment, nil
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return nil, paymentdomain.ErrInvalidTenant
	}
	return s.repo.ListByInvoice(ctx, s.db, tenantID, invoiceID)
}

func validateRecord(req *paymentdomain.RecordRequest) error {
	if !req.Amount.IsPositive() {
		return paymentdomain.ErrInvalidAmount
	}
	if req.FeeAmount.IsNegative() || req.FeeAmount.GreaterThan(req.Amount) {
		return paymentdomain.ErrInvalidFee
	}
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Method == "" {
		return paymentdomain.ErrInvalidMethod
	}
	return nil
}
