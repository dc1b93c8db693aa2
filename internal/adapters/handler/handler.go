package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
	"github.com/DanielPopoola/zarinpal-go/internal/core/service"
	"github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator"
)

type CheckoutService interface {
	Start(ctx context.Context, cmd service.StartCommand) (*service.StartResult, error)
	HandleCallback(ctx context.Context, cb zarinpal.Callback) (*domain.Payment, error)
	Status(ctx context.Context, authority string) (*service.StatusResult, error)
	Reverse(ctx context.Context, authority string) (*domain.Payment, error)
	Transactions(ctx context.Context, req zarinpal.TransactionsRequest) ([]zarinpal.Session, error)
	Refund(ctx context.Context, req zarinpal.RefundRequest) (*zarinpal.RefundResponse, error)
}

type PaymentHandler struct {
	checkout CheckoutService
	validate *validator.Validate
}

func NewPaymentHandler(checkout CheckoutService) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		validate: validator.New(),
	}
}

type RouterOptions struct {
	Timeout        time.Duration
	AllowedOrigins []string
}

// NewRouter mounts the checkout API behind the standard middleware stack.
func NewRouter(h *PaymentHandler, logger *slog.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))

	// Without configured origins no CORS headers are sent and browsers keep
	// cross-origin calls blocked.
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	if opts.Timeout > 0 {
		r.Use(middleware.Timeout(opts.Timeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Get("/callback", h.HandleCallback)
		r.Get("/{authority}", h.HandleStatus)
		r.Post("/{authority}/reverse", h.HandleReverse)
	})
	r.Get("/transactions", h.HandleTransactions)
	r.Post("/refunds", h.HandleRefund)

	return r
}
