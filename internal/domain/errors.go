package domain

import (
	"errors"
	"fmt"
)

// Error represents a business rule violation. It is data, not a transport
// fault: the orchestrator persists it as a failed transaction outcome
// instead of propagating it to the caller.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errorf builds a domain error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsDomainError extracts a *Error from err, or nil if err is not one.
func AsDomainError(err error) *Error {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr
	}
	return nil
}

// Business error codes
const (
	ErrCodeInvalidAmount         = "invalid_amount"
	ErrCodeInvalidRequest        = "invalid_request"
	ErrCodeAccountNotActive      = "account_not_active"
	ErrCodeCurrencyMismatch      = "currency_mismatch"
	ErrCodeInsufficientFunds     = "insufficient_funds"
	ErrCodeInsufficientAvailable = "insufficient_available_balance"
	ErrCodeInsufficientReserved  = "insufficient_reserved_balance"
	ErrCodeAccountNotFound       = "account_not_found"
	ErrCodeAccountExists         = "account_already_exists"
	ErrCodeOriginalNotFound      = "original_transaction_not_found"
	ErrCodeAlreadyReversed       = "already_reversed"
	ErrCodeUnsupportedOperation  = "unsupported_operation"
	ErrCodeUnsupportedReversal   = "unsupported_reversal"
	ErrCodeRetryExhausted        = "concurrency_retry_exhausted"
)
