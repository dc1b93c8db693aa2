package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodePaymentNotFound      = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeDuplicateAuthority   = "DUPLICATE_AUTHORITY"
	ErrCodeGatewayRejected      = "GATEWAY_REJECTED"
	ErrCodeGatewayUnavailable   = "GATEWAY_UNAVAILABLE"
)

func NewInvalidTransitionError(from, to PaymentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewPaymentNotFoundError(authority string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment with authority %s not found", authority),
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidRequestError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidRequest,
		Message: "invalid payment request",
		Err:     err,
	}
}

func NewDuplicateAuthorityError(authority string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateAuthority,
		Message: fmt.Sprintf("payment with authority %s already exists", authority),
	}
}

func NewGatewayRejectedError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeGatewayRejected,
		Message: "gateway rejected the request",
		Err:     err,
	}
}

func NewGatewayUnavailableError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeGatewayUnavailable,
		Message: "gateway unavailable",
		Err:     err,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
