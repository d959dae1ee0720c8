package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/internal/authorization"
	ledgerdomain "github.com/smallbiznis/bookkeeping/internal/ledger/domain"
	organizationdomain "github.com/smallbiznis/bookkeeping/internal/organization/domain"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
	"gorm.io/gorm"
)

// retryAfterSeconds is advertised on 503 responses for posting timeouts.
const retryAfterSeconds = "1"

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
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")

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
		var limited *rateLimitedError
		switch {
		case errors.As(lastErr.Err, &limited):
			c.Header("Retry-After", limited.retryAfterHeader())
		case status == http.StatusServiceUnavailable:
			c.Header("Retry-After", retryAfterSeconds)
		}
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

	var fieldErr *voucherdomain.ValidationError
	if errors.As(err, &fieldErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   fieldErr.Field,
				Code:    fieldErr.Code,
				Message: fieldErr.Message,
			}},
		}
	}

	var unbalanced *voucherdomain.UnbalancedVoucherError
	if errors.As(err, &unbalanced) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unbalanced_voucher",
			Message: unbalanced.Error(),
			Details: map[string]any{
				"total_debit":  unbalanced.TotalDebit.StringFixed(2),
				"total_credit": unbalanced.TotalCredit.StringFixed(2),
				"difference":   unbalanced.Difference.StringFixed(2),
			},
		}
	}

	var locked *perioddomain.PeriodLockedError
	if errors.As(err, &locked) {
		details := map[string]any{}
		if locked.Year != 0 {
			details["year"] = locked.Year
		}
		if locked.LockedUntil != nil {
			details["locked_until"] = locked.LockedUntil.Format(dateOnlyLayout)
		}
		if locked.Missing {
			details["missing_year"] = true
		}
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "period_locked",
			Message: locked.Error(),
			Details: details,
		}
	}

	var conflict *voucherdomain.NumberingConflictError
	if errors.As(err, &conflict) {
		return http.StatusConflict, errorPayload{
			Type:    "numbering_conflict",
			Message: "voucher number could not be allocated, retry the request",
			Details: map[string]any{"attempts": conflict.Attempts},
		}
	}

	var limited *rateLimitedError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many posting requests, retry later",
		}
	}

	if isValidationError(err) {
		code := err.Error()
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
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidRole),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable, retry the request",
		}
	case errors.Is(err, voucherdomain.ErrTimeout):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "timeout",
			Message: "posting timed out, retry the request",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds error_type and error_code into request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError && payload.Type == "internal_error":
		return "internal", "internal_error"
	case len(payload.Errors) > 0:
		return payload.Type, payload.Errors[0].Code
	default:
		return payload.Type, payload.Type
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, voucherdomain.ErrInvalidStatus),
		errors.Is(err, voucherdomain.ErrInvalidOrganization),
		errors.Is(err, accountdomain.ErrInvalidNumber),
		errors.Is(err, accountdomain.ErrInvalidName),
		errors.Is(err, accountdomain.ErrUnknownVatCode),
		errors.Is(err, accountdomain.ErrInactive),
		errors.Is(err, vatdomain.ErrInvalidName),
		errors.Is(err, vatdomain.ErrInvalidVatCode),
		errors.Is(err, vatdomain.ErrInvalidVatRate),
		errors.Is(err, vatdomain.ErrDisabled),
		errors.Is(err, perioddomain.ErrInvalidYear),
		errors.Is(err, perioddomain.ErrLockOutsideYear),
		errors.Is(err, ledgerdomain.ErrInvalidRange),
		errors.Is(err, auditdomain.ErrInvalidTarget):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, voucherdomain.ErrNotDraft),
		errors.Is(err, voucherdomain.ErrNotBooked),
		errors.Is(err, voucherdomain.ErrAlreadyReversed),
		errors.Is(err, voucherdomain.ErrReverseCreditNote),
		errors.Is(err, accountdomain.ErrDuplicateNumber),
		errors.Is(err, vatdomain.ErrDuplicateVatCode),
		errors.Is(err, perioddomain.ErrYearExists):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, voucherdomain.ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, vatdomain.ErrNotFound),
		errors.Is(err, perioddomain.ErrYearNotFound),
		errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
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
	default:
		return "invalid value"
	}
}
