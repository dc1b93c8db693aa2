package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
	"github.com/DanielPopoola/zarinpal-go/internal/core/service"
	"github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type StartPaymentRequest struct {
	Amount      int64         `json:"amount" validate:"required,gt=0"`
	Description string        `json:"description" validate:"required"`
	Mobile      *string       `json:"mobile,omitempty" validate:"omitempty,numeric,min=10,max=13"`
	Email       *string       `json:"email,omitempty" validate:"omitempty,email"`
	Currency    *string       `json:"currency,omitempty" validate:"omitempty,oneof=IRR IRT"`
	Wages       []WageRequest `json:"wages,omitempty" validate:"omitempty,dive"`
}

type WageRequest struct {
	IBAN        string `json:"iban" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"required"`
}

type RefundRequest struct {
	SessionID   string  `json:"session_id" validate:"required"`
	Amount      int64   `json:"amount" validate:"required,gt=0"`
	Description *string `json:"description,omitempty"`
	Method      *string `json:"method,omitempty" validate:"omitempty,oneof=PAYA CARD"`
	Reason      *string `json:"reason,omitempty" validate:"omitempty,oneof=CUSTOMER_REQUEST DUPLICATE_TRANSACTION SUSPICIOUS_TRANSACTION OTHER"`
}

type PaymentResponse struct {
	ID            uuid.UUID            `json:"id"`
	Authority     string               `json:"authority"`
	Amount        int64                `json:"amount"`
	Description   string               `json:"description"`
	Status        domain.PaymentStatus `json:"status"`
	RefID         *int64               `json:"ref_id,omitempty"`
	CardPan       *string              `json:"card_pan,omitempty"`
	FailureCode   *int                 `json:"failure_code,omitempty"`
	PaymentURL    string               `json:"payment_url,omitempty"`
	GatewayStatus string               `json:"gateway_status,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	VerifiedAt    *time.Time           `json:"verified_at,omitempty"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		Authority:   p.Authority,
		Amount:      p.Amount,
		Description: p.Description,
		Status:      p.Status,
		RefID:       p.RefID,
		CardPan:     p.CardPan,
		FailureCode: p.FailureCode,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		VerifiedAt:  p.VerifiedAt,
	}
}

// HandleStart opens a gateway session and returns the StartPay URL to redirect the customer to.
func (h *PaymentHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartPaymentRequest
	if err := h.decode(w, r, &req); err != nil {
		respondWithError(w, err)
		return
	}

	cmd := service.StartCommand{
		Amount:      req.Amount,
		Description: req.Description,
		Mobile:      req.Mobile,
		Email:       req.Email,
		Currency:    req.Currency,
	}
	for _, wage := range req.Wages {
		cmd.Wages = append(cmd.Wages, zarinpal.WageSplit{
			IBAN:        wage.IBAN,
			Amount:      wage.Amount,
			Description: wage.Description,
		})
	}

	result, err := h.checkout.Start(r.Context(), cmd)
	if err != nil {
		respondWithError(w, err)
		return
	}

	resp := toPaymentResponse(result.Payment)
	resp.PaymentURL = result.PaymentURL
	respondWithJSON(w, http.StatusCreated, resp)
}

// HandleCallback is where the gateway sends the customer back after payment.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	cb, err := zarinpal.ParseCallback(r.URL.Query())
	if err != nil {
		respondWithError(w, validationError(err))
		return
	}

	payment, err := h.checkout.HandleCallback(r.Context(), cb)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *PaymentHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.Status(r.Context(), chi.URLParam(r, "authority"))
	if err != nil {
		respondWithError(w, err)
		return
	}

	resp := toPaymentResponse(result.Payment)
	resp.GatewayStatus = result.GatewayStatus
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleReverse(w http.ResponseWriter, r *http.Request) {
	payment, err := h.checkout.Reverse(r.Context(), chi.URLParam(r, "authority"))
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// HandleTransactions lists gateway sessions of a terminal.
// Query: terminal_id (required), filter, limit, offset.
func (h *PaymentHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := zarinpal.TransactionsRequest{TerminalID: query.Get("terminal_id")}

	if filter := query.Get("filter"); filter != "" {
		req.Filter = &filter
	}
	for name, target := range map[string]**int{"limit": &req.Limit, "offset": &req.Offset} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, validationError(fmt.Errorf("%s must be a non-negative integer", name)))
			return
		}
		*target = &n
	}

	sessions, err := h.checkout.Transactions(r.Context(), req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if sessions == nil {
		sessions = []zarinpal.Session{}
	}

	respondWithJSON(w, http.StatusOK, sessions)
}

func (h *PaymentHandler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := h.decode(w, r, &req); err != nil {
		respondWithError(w, err)
		return
	}

	resp, err := h.checkout.Refund(r.Context(), zarinpal.RefundRequest{
		SessionID:   req.SessionID,
		Amount:      req.Amount,
		Description: req.Description,
		Method:      req.Method,
		Reason:      req.Reason,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *PaymentHandler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return validationError(fmt.Errorf("could not read request body: %w", err))
	}

	if err := sonic.Unmarshal(body, v); err != nil {
		return validationError(fmt.Errorf("invalid JSON body: %w", err))
	}

	if err := h.validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}
