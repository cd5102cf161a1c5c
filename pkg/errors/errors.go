package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Standard error types
var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("resource conflict")
	ErrInternal   = errors.New("internal server error")
	ErrValidation = errors.New("validation error")

	// Inventory error types
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrDuplicateLot         = errors.New("duplicate lot")
	ErrConcurrencyConflict  = errors.New("concurrent modification detected")
	ErrLotQuarantined       = errors.New("lot is quarantined")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Inventory error constructors

// ProductNotFound indicates the referenced product does not exist in the catalog.
func ProductNotFound(productID string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "PRODUCT_NOT_FOUND",
		Message:    "product not found",
		StatusCode: http.StatusNotFound,
		Details:    map[string]string{"product_id": productID},
	}
}

// DuplicateLot indicates a lot number collision for a product at a location.
func DuplicateLot(lotNumber string) *AppError {
	return &AppError{
		Err:        ErrDuplicateLot,
		Code:       "DUPLICATE_LOT",
		Message:    fmt.Sprintf("a lot with number %s already exists for this product at this location", lotNumber),
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"lot_number": lotNumber},
	}
}

// InsufficientQuantity indicates a single lot cannot cover the requested quantity.
func InsufficientQuantity(lotID string, requested, available int) *AppError {
	return &AppError{
		Err:        ErrInsufficientQuantity,
		Code:       "INSUFFICIENT_QUANTITY",
		Message:    fmt.Sprintf("lot has %d available, %d requested", available, requested),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"lot_id":    lotID,
			"requested": strconv.Itoa(requested),
			"available": strconv.Itoa(available),
		},
	}
}

// InsufficientInventory indicates the aggregate stock across all lots cannot
// cover the requested quantity. The available amount lets the caller offer a
// reduced-quantity retry.
func InsufficientInventory(productID string, requested, available int) *AppError {
	return &AppError{
		Err:        ErrInsufficientQuantity,
		Code:       "INSUFFICIENT_INVENTORY",
		Message:    fmt.Sprintf("only %d available across all lots, %d requested", available, requested),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"product_id": productID,
			"requested":  strconv.Itoa(requested),
			"available":  strconv.Itoa(available),
		},
	}
}

// InvalidQuantity indicates a zero or negative quantity from the caller.
func InvalidQuantity(quantity int) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    fmt.Sprintf("quantity must be positive, got %d", quantity),
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"quantity": strconv.Itoa(quantity)},
	}
}

// ConcurrencyConflict indicates a lot was modified between plan and mutation.
func ConcurrencyConflict(lotID string) *AppError {
	return &AppError{
		Err:        ErrConcurrencyConflict,
		Code:       "CONCURRENCY_CONFLICT",
		Message:    "lot was modified concurrently, retry the operation",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"lot_id": lotID},
	}
}

// LotQuarantined indicates a deduction or forced selection targeted a quarantined lot.
func LotQuarantined(lotID string) *AppError {
	return &AppError{
		Err:        ErrLotQuarantined,
		Code:       "LOT_QUARANTINED",
		Message:    "lot is under quarantine hold",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"lot_id": lotID},
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
