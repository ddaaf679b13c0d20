// Package apperr defines the error kinds returned by the budget workflow services.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Conflict codes
const (
	CodeInsufficientBudget = "INSUFFICIENT_BUDGET"
	CodeFinalized          = "FINALIZED"
	CodeInvalidState       = "INVALID_STATE"
	CodeAlreadyResolved    = "ALREADY_RESOLVED"
)

// ValidationError reports malformed or out-of-range input
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError reports that a referenced entity does not exist
type NotFoundError struct {
	Entity string `json:"entity"`
	ID     int64  `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ConflictError reports that an operation is not allowed in the current state
type ConflictError struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Available *decimal.Decimal `json:"available,omitempty"`
	Required  *decimal.Decimal `json:"required,omitempty"`
}

func (e *ConflictError) Error() string {
	return e.Message
}

// StorageError wraps a failure of the underlying store
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Validation creates a ValidationError
func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a NotFoundError
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Conflict creates a ConflictError without budget figures
func Conflict(code, format string, args ...interface{}) error {
	return &ConflictError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InsufficientBudget creates the conflict returned when an approval would overdraw the budget
func InsufficientBudget(available, required decimal.Decimal) error {
	return &ConflictError{
		Code:      CodeInsufficientBudget,
		Message:   fmt.Sprintf("insufficient budget: available %s, required %s", available.StringFixed(2), required.StringFixed(2)),
		Available: &available,
		Required:  &required,
	}
}

// Storage wraps err as a StorageError unless it already belongs to the taxonomy
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsNotFound(err) || IsConflict(err) || IsStorage(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsStorage reports whether err is a StorageError
func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

// AsConflict extracts a ConflictError from err
func AsConflict(err error) (*ConflictError, bool) {
	var target *ConflictError
	ok := errors.As(err, &target)
	return target, ok
}
