package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string
	Message    string
	Detail     string
	Details    []string
	Meta       any
	StatusCode int
	Err        error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail

	return e
}

// WithDetails attaches itemised messages, one per offending entity.
func (e *AppError) WithDetails(details ...string) *AppError {
	e.Details = append(e.Details, details...)

	return e
}

// WithMeta attaches a structured payload that is rendered next to the error.
func (e *AppError) WithMeta(meta any) *AppError {
	e.Meta = meta

	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err

	return e
}

const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeDatabaseError      = "DATABASE_ERROR"
	ErrCodeThirdPartyError    = "THIRD_PARTY_ERROR"
	ErrCodeInvalidLine        = "INVALID_LINE"
	ErrCodeCapabilityConflict = "CAPABILITY_CONFLICT"
	ErrCodeStockViolation     = "STOCK_VIOLATION"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeTransientNetwork   = "TRANSIENT_NETWORK"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
)

func ValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message, http.StatusBadRequest)
}

func BadRequestError(message string) *AppError {
	return NewAppError(ErrCodeBadRequest, message, http.StatusBadRequest)
}

func NotFoundError(message string) *AppError {
	return NewAppError(ErrCodeNotFound, message, http.StatusNotFound)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func InternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func DatabaseError(message string) *AppError {
	return NewAppError(ErrCodeDatabaseError, message, http.StatusInternalServerError)
}

func ThirdPartyError(message string) *AppError {
	return NewAppError(ErrCodeThirdPartyError, message, http.StatusBadGateway)
}

// InvalidLineError is returned when a raw cart payload has no resolvable product id.
func InvalidLineError(message string) *AppError {
	return NewAppError(ErrCodeInvalidLine, message, http.StatusBadRequest)
}

// CapabilityConflictError means the selected payment method is no longer allowed.
func CapabilityConflictError(message string) *AppError {
	return NewAppError(ErrCodeCapabilityConflict, message, http.StatusConflict)
}

// StockViolationError blocks submission; callers attach one detail per line.
func StockViolationError(message string) *AppError {
	return NewAppError(ErrCodeStockViolation, message, http.StatusConflict)
}

func SessionExpiredError(message string) *AppError {
	return NewAppError(ErrCodeSessionExpired, message, http.StatusUnauthorized)
}

func TransientNetworkError(message string) *AppError {
	return NewAppError(ErrCodeTransientNetwork, message, http.StatusServiceUnavailable)
}

func InvalidStateError(message string) *AppError {
	return NewAppError(ErrCodeInvalidState, message, http.StatusConflict)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(ErrCodeTooManyRequests, message, http.StatusTooManyRequests)
}

func IsAppError(err error) (*AppError, bool) {
	var appError *AppError

	if errors.As(err, &appError) {
		return appError, true
	}

	return nil, false
}

// HasCode reports whether err, or anything it wraps, is an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)

	return ok && appErr.Code == code
}

// field validation error.
func AddValidationError(field, reason string) *AppError {
	return ValidationError(fmt.Sprintf("Invalid field '%s': %s", field, reason))
}
