package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
	"github.com/bytedance/sonic"
)

const (
	errCodeValidation = "VALIDATION_ERROR"
	errCodeTimeout    = "TIMEOUT"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else if apiErr, ok := data.(*APIError); ok {
		response.Error = apiErr
	}

	_ = sonic.ConfigStd.NewEncoder(w).Encode(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	code := "INTERNAL_ERROR"
	message := err.Error()
	status := http.StatusInternalServerError

	if errors.Is(err, context.DeadlineExceeded) {
		respondWithJSON(w, http.StatusGatewayTimeout, &APIError{
			Code:    errCodeTimeout,
			Message: "Request timeout",
		})
		return
	}

	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message
		if domainErr.Err != nil {
			message = domainErr.Error()
		}

		switch domainErr.Code {
		case domain.ErrCodeInvalidAmount, domain.ErrCodeMissingRequiredField, domain.ErrCodeInvalidRequest:
			status = http.StatusBadRequest
		case domain.ErrCodePaymentNotFound:
			status = http.StatusNotFound
		case domain.ErrCodeDuplicateAuthority, domain.ErrCodeInvalidTransition:
			status = http.StatusConflict
		case domain.ErrCodeGatewayRejected:
			status = http.StatusUnprocessableEntity
		case domain.ErrCodeGatewayUnavailable:
			status = http.StatusBadGateway
		default:
			status = http.StatusBadRequest
		}
	}

	respondWithJSON(w, status, &APIError{
		Code:    code,
		Message: message,
	})
}

func validationError(err error) *domain.DomainError {
	return &domain.DomainError{
		Code:    errCodeValidation,
		Message: err.Error(),
	}
}
