package zarinpal

import (
	"errors"
	"fmt"
	"strings"
)

// Gateway result codes.
const (
	CodeSuccess          = 100
	CodeAlreadyVerified  = 101
	CodeValidation       = -9
	CodeInvalidTerminal  = -10
	CodeInactiveTerminal = -11
	CodeTooManyAttempts  = -12
	CodeAmountMismatch   = -50
	CodeSessionNotPaid   = -51
	CodeForeignSession   = -53
	CodeInvalidAuthority = -54
)

var (
	// ErrEmptyResponse is returned when the gateway answers without data or errors.
	ErrEmptyResponse = errors.New("zarinpal: empty response")

	ErrMissingAccessToken = errors.New("zarinpal: access token is required")
)

// GatewayError is a rejection reported by the gateway.
type GatewayError struct {
	Code        int
	Message     string
	StatusCode  int
	Validations []map[string]any
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("zarinpal error [%d]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.Code == CodeTooManyAttempts
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

// IsGatewayCode reports whether err is a GatewayError with the given code.
func IsGatewayCode(err error, code int) bool {
	gwErr, ok := IsGatewayError(err)
	return ok && gwErr.Code == code
}

// DecodeError reports JSON that could not be decoded into the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("zarinpal: decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type FieldError struct {
	Field  string
	Reason string
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "zarinpal: invalid request: " + strings.Join(parts, ", ")
}

func IsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	ok := errors.As(err, &vErr)
	return vErr, ok
}
