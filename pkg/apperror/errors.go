package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithDetail attaches a client-visible detail string.
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// ---- Webhook ingestion (WH) ----

func ErrInvalidCallbackToken() *AppError {
	return New("WH_001", "Invalid callback token", http.StatusForbidden)
}

func ErrMissingCallbackFields(detail string) *AppError {
	return New("WH_002", "Missing required callback fields", http.StatusBadRequest).WithDetail(detail)
}

// ---- Payment lookup (PAY) ----

func ErrPaymentNotFound() *AppError {
	return New("PAY_001", "Payment not found", http.StatusNotFound)
}

func ErrInvalidLimit() *AppError {
	return New("PAY_002", "Invalid limit parameter", http.StatusBadRequest)
}

// ---- Upstream provider (PRV) ----

func ErrProviderCheckFailed(err error) *AppError {
	return Wrap("PRV_001", "Provider status check failed", http.StatusBadGateway, err)
}

// ---- Admin (ADM) ----

func ErrAdminUnauthorized() *AppError {
	return New("ADM_001", "Unauthorized", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a generic 400 validation error.
func Validation(message string) *AppError {
	return New("WH_002", message, http.StatusBadRequest)
}
