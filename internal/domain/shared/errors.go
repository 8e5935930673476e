package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so errors
// carrying a detailed message still match the package sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a domain error with the code of kind and a formatted message.
func Errorf(kind *DomainError, format string, args ...any) *DomainError {
	return NewDomainError(kind.Code, fmt.Sprintf(format, args...))
}

// Error codes
const (
	CodeNotFound               = "NOT_FOUND"
	CodeValidation             = "VALIDATION_ERROR"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeInsufficientAvailable  = "INSUFFICIENT_AVAILABLE"
	CodeOverReceipt            = "OVER_RECEIPT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeLockTimeout            = "LOCK_TIMEOUT"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeDuplicateReference     = "DUPLICATE_REFERENCE"
)

// Ledger domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "resource not found")
	ErrValidation             = NewDomainError(CodeValidation, "invalid input")
	ErrInsufficientStock      = NewDomainError(CodeInsufficientStock, "insufficient stock")
	ErrInsufficientAvailable  = NewDomainError(CodeInsufficientAvailable, "insufficient available stock")
	ErrOverReceipt            = NewDomainError(CodeOverReceipt, "received and rejected quantity exceeds ordered quantity")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "position was modified by another process")
	ErrLockTimeout            = NewDomainError(CodeLockTimeout, "timed out waiting for position lock")
	ErrInvalidTransition      = NewDomainError(CodeInvalidTransition, "operation not allowed in current state")
	ErrDuplicateReference     = NewDomainError(CodeDuplicateReference, "reference number already exists")
)

// IsRetryable reports whether err is a transient concurrency failure that
// may succeed when the operation is attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrLockTimeout)
}
