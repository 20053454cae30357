package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
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

// Is reports whether err is, or wraps, an AppError with the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error codes.
const (
	CodeNotConfigured           = "CFG_001"
	CodeInvalidConfiguration    = "CFG_002"
	CodeInvalidAmount           = "PAY_001"
	CodeInsufficientBalance     = "PAY_002"
	CodeAmountOutOfRange        = "PAY_003"
	CodeUnverifiedPaymentMethod = "PAY_004"
	CodeLimitExceeded           = "PAY_005"
	CodeInvalidTransition       = "PAY_006"
	CodeIdempotencyMismatch     = "PAY_007"
	CodeKYCRequired             = "PAY_008"
	CodeNotFound                = "PAY_009"
	CodeValidation              = "REQ_001"
	CodeInvalidToken            = "AUTH_001"
	CodeForbidden               = "AUTH_002"
	CodeRateLimitExceeded       = "RATE_001"
	CodeStorageFailure          = "SYS_001"
)

// ---- Configuration (CFG) ----

func ErrNotConfigured() *AppError {
	return New(CodeNotConfigured, "No active payout configuration", http.StatusServiceUnavailable)
}

func ErrInvalidConfiguration(reason string) *AppError {
	return New(CodeInvalidConfiguration, fmt.Sprintf("Invalid payout configuration: %s", reason), http.StatusBadRequest)
}

// ---- Payout & Ledger Business Logic (PAY) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrAmountOutOfRange(min, max string) *AppError {
	return New(CodeAmountOutOfRange, fmt.Sprintf("Amount must be between %s and %s", min, max), http.StatusUnprocessableEntity)
}

func ErrUnverifiedPaymentMethod() *AppError {
	return New(CodeUnverifiedPaymentMethod, "Payment method is not verified for this vendor", http.StatusUnprocessableEntity)
}

func ErrLimitExceeded(period string) *AppError {
	return New(CodeLimitExceeded, fmt.Sprintf("%s payout limit exceeded", period), http.StatusUnprocessableEntity)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("Cannot move payout from %s to %s", from, to), http.StatusConflict)
}

func ErrIdempotencyKeyMismatch() *AppError {
	return New(CodeIdempotencyMismatch, "Idempotency key reused with different parameters", http.StatusConflict)
}

func ErrKYCRequired() *AppError {
	return New(CodeKYCRequired, "KYC verification required before payouts", http.StatusForbidden)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Insufficient role for this operation", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// StorageFailure wraps a persistence error. The enclosing transaction is rolled back.
func StorageFailure(err error) *AppError {
	return Wrap(CodeStorageFailure, "Internal storage failure", http.StatusInternalServerError, err)
}

// Validation returns a REQ_001 request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
