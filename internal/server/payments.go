package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	"github.com/smallbiznis/workbook/pkg/civil"
)

type recordPaymentRequest struct {
	InvoiceID   *snowflake.ID   `json:"invoice_id"`
	UserID      snowflake.ID    `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	PaymentDate civil.Date      `json:"payment_date"`
	Method      string          `json:"method"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.PaymentDate.IsZero() {
		req.PaymentDate = civil.DateOf(s.clock.Now())
	}

	payment, err := s.paymentSvc.Record(c.Request.Context(), paymentdomain.RecordRequest{
		InvoiceID:   req.InvoiceID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		FeeAmount:   req.FeeAmount,
		PaymentDate: req.PaymentDate,
		Method:      req.Method,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	invoiceID, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payments, err := s.paymentSvc.ListByInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
