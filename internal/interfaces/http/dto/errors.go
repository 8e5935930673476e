package dto

import (
	"net/http"

	"github.com/erp/stockledger/internal/domain/shared"
)

// API error codes. Ledger failures keep the domain code behind an ERR_ prefix.
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"

	ErrCodeInsufficientStock      = "ERR_INSUFFICIENT_STOCK"
	ErrCodeInsufficientAvailable  = "ERR_INSUFFICIENT_AVAILABLE"
	ErrCodeOverReceipt            = "ERR_OVER_RECEIPT"
	ErrCodeInvalidTransition      = "ERR_INVALID_TRANSITION"
	ErrCodeConcurrentModification = "ERR_CONCURRENT_MODIFICATION"
	ErrCodeLockTimeout            = "ERR_LOCK_TIMEOUT"
	ErrCodeDuplicateReference     = "ERR_DUPLICATE_REFERENCE"
)

var errorCodeToHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeInsufficientStock:     http.StatusUnprocessableEntity,
	ErrCodeInsufficientAvailable: http.StatusUnprocessableEntity,
	ErrCodeOverReceipt:           http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:     http.StatusUnprocessableEntity,

	// Retryable by the caller
	ErrCodeConcurrentModification: http.StatusConflict,
	ErrCodeLockTimeout:            http.StatusConflict,
	ErrCodeDuplicateReference:     http.StatusConflict,
}

var domainCodeToErrorCode = map[string]string{
	shared.CodeNotFound:               ErrCodeNotFound,
	shared.CodeValidation:             ErrCodeValidation,
	shared.CodeInsufficientStock:      ErrCodeInsufficientStock,
	shared.CodeInsufficientAvailable:  ErrCodeInsufficientAvailable,
	shared.CodeOverReceipt:            ErrCodeOverReceipt,
	shared.CodeConcurrentModification: ErrCodeConcurrentModification,
	shared.CodeLockTimeout:            ErrCodeLockTimeout,
	shared.CodeInvalidTransition:      ErrCodeInvalidTransition,
	shared.CodeDuplicateReference:     ErrCodeDuplicateReference,
}

// GetHTTPStatus returns the HTTP status for an API error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromDomainCode converts a shared.DomainError code to its API code
func FromDomainCode(code string) string {
	if apiCode, ok := domainCodeToErrorCode[code]; ok {
		return apiCode
	}
	return ErrCodeInternal
}
