package server

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workbook/internal/authorization"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/smallbiznis/workbook/internal/reporting/export"
	"github.com/smallbiznis/workbook/internal/reporting/rollup"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	timesheetdomain "github.com/smallbiznis/workbook/internal/timesheet/domain"
	"github.com/smallbiznis/workbook/pkg/validation"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog reports the payload type and code the request log
// carries for a failed request.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErrs validation.FieldErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fieldValidationErrors(fieldErrs),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, scope.ErrMissingTenant),
		errors.Is(err, payrolldomain.ErrInvalidTenant),
		errors.Is(err, paymentdomain.ErrInvalidTenant),
		errors.Is(err, timesheetdomain.ErrInvalidTenant):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, payrolldomain.ErrInvalidTransition),
		errors.Is(err, payrolldomain.ErrBatchExists),
		errors.Is(err, payrolldomain.ErrBatchLocked),
		errors.Is(err, timesheetdomain.ErrInvalidTransition),
		errors.Is(err, timesheetdomain.ErrConcurrentUpdate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, reportingdomain.ErrReportTimeout):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "report_timeout",
			Message: "report timed out",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func fieldValidationErrors(fields validation.FieldErrors) []ValidationError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ValidationError, 0, len(names))
	for _, name := range names {
		out = append(out, ValidationError{
			Field:   name,
			Code:    fields[name],
			Message: validationErrorMessage(fields[name]),
		})
	}
	return out
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, validation.ErrValidation),
		errors.Is(err, scope.ErrInvalidRange),
		errors.Is(err, rollup.ErrInvalidOrder),
		errors.Is(err, reportingdomain.ErrInvalidStatus),
		errors.Is(err, export.ErrUnsupportedReport),
		errors.Is(err, payrolldomain.ErrInvalidRequest),
		errors.Is(err, payrolldomain.ErrInvalidRange),
		errors.Is(err, payrolldomain.ErrInvalidStatus),
		errors.Is(err, timesheetdomain.ErrReviewerRequired),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidFee),
		errors.Is(err, paymentdomain.ErrInvalidMethod):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, payrolldomain.ErrBatchNotFound),
		errors.Is(err, timesheetdomain.ErrTimesheetNotFound),
		errors.Is(err, paymentdomain.ErrInvoiceMissing),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, payrolldomain.ErrBatchLocked):
		return "batch is being processed"
	case errors.Is(err, payrolldomain.ErrBatchExists):
		return "batch reference already used"
	default:
		return "conflict"
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, payrolldomain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, scope.ErrInvalidRange),
		errors.Is(err, payrolldomain.ErrInvalidRange):
		return "invalid_date_range"
	case errors.Is(err, rollup.ErrInvalidOrder):
		return "invalid_order"
	case errors.Is(err, reportingdomain.ErrInvalidStatus),
		errors.Is(err, payrolldomain.ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, export.ErrUnsupportedReport):
		return "invalid_format"
	case errors.Is(err, timesheetdomain.ErrReviewerRequired):
		return "reviewer_required"
	case errors.Is(err, paymentdomain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, paymentdomain.ErrInvalidFee):
		return "invalid_fee_amount"
	case errors.Is(err, paymentdomain.ErrInvalidMethod):
		return "invalid_method"
	default:
		return "invalid_request"
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_date_range":
		return "end_date"
	case "reviewer_required":
		return "reviewer"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_date_range":
		return "start_date must not be after end_date"
	case "required":
		return "is required"
	default:
		return "invalid value"
	}
}
