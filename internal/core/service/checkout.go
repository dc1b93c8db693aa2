package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
	"github.com/DanielPopoola/zarinpal-go/internal/core/ports"
	"github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"
)

// staleAfter is how long a payment may stay PENDING before reconciliation asks the gateway about it.
const staleAfter = 20 * time.Minute

const (
	inquiryPaid     = "PAID"
	inquiryVerified = "VERIFIED"
	inquiryFailed   = "FAILED"
)

type CheckoutService struct {
	repo        ports.PaymentRepository
	gateway     ports.PaymentGateway
	callbackURL string
	logger      *slog.Logger
}

func NewCheckoutService(repo ports.PaymentRepository, gateway ports.PaymentGateway, callbackURL string, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		repo:        repo,
		gateway:     gateway,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

type StartCommand struct {
	Amount      int64
	Description string
	Mobile      *string
	Email       *string
	Currency    *string
	Wages       []zarinpal.WageSplit
}

type StartResult struct {
	Payment    *domain.Payment
	PaymentURL string
}

type StatusResult struct {
	Payment       *domain.Payment
	GatewayStatus string
}

type ReconcileReport struct {
	Verified int
	Canceled int
	Failed   int
}

// Start opens a gateway session and records it as PENDING.
func (s *CheckoutService) Start(ctx context.Context, cmd StartCommand) (*StartResult, error) {
	if err := s.validate(cmd); err != nil {
		return nil, err
	}

	builder := zarinpal.NewCreatePaymentBuilder().
		Description(cmd.Description).
		Callback(s.callbackURL).
		Amount(cmd.Amount).
		Metadata(cmd.Mobile, cmd.Email).
		Currency(cmd.Currency)
	for _, w := range cmd.Wages {
		builder.Wage(w.IBAN, w.Amount, w.Description)
	}
	req := builder.Build()

	if req.Wages != nil && !req.SumMatches() {
		return nil, domain.NewInvalidRequestError(
			fmt.Errorf("wages total %d does not match amount %d", req.WagesTotal(), req.Amount),
		)
	}

	resp, err := s.gateway.CreatePayment(ctx, req)
	if err != nil {
		return nil, mapGatewayError(err)
	}

	var mobile, email *string
	if req.Metadata != nil {
		mobile, email = req.Metadata.Mobile, req.Metadata.Email
	}

	payment, err := domain.NewPayment(resp.Authority, cmd.Amount, cmd.Description, s.callbackURL, mobile, email)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	return &StartResult{
		Payment:    payment,
		PaymentURL: s.gateway.StartPayURL(payment.Authority),
	}, nil
}

// HandleCallback settles the payment the customer returned from. Payments that
// already left PENDING are returned unchanged.
func (s *CheckoutService) HandleCallback(ctx context.Context, cb zarinpal.Callback) (*domain.Payment, error) {
	if !cb.Paid() {
		return s.transition(ctx, cb.Authority, func(p *domain.Payment) (bool, error) {
			if p.Status != domain.StatusPending {
				return false, nil
			}
			return true, p.Cancel()
		})
	}

	payment, err := s.repo.FindByAuthority(ctx, cb.Authority)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusPending {
		return payment, nil
	}

	return s.verify(ctx, payment)
}

func (s *CheckoutService) Status(ctx context.Context, authority string) (*StatusResult, error) {
	payment, err := s.repo.FindByAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Inquiry(ctx, zarinpal.InquiryRequest{Authority: authority})
	if err != nil {
		return nil, mapGatewayError(err)
	}

	return &StatusResult{Payment: payment, GatewayStatus: resp.Status}, nil
}

// Reverse returns a verified payment to the customer.
func (s *CheckoutService) Reverse(ctx context.Context, authority string) (*domain.Payment, error) {
	payment, err := s.repo.FindByAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}

	if err := payment.CanTransitionTo(domain.StatusReversed); err != nil {
		return nil, err
	}

	if _, err := s.gateway.Reverse(ctx, zarinpal.ReverseRequest{Authority: authority}); err != nil {
		return nil, mapGatewayError(err)
	}

	return s.transition(ctx, authority, func(p *domain.Payment) (bool, error) {
		if p.Status == domain.StatusReversed {
			return false, nil
		}
		return true, p.Reverse()
	})
}

func (s *CheckoutService) Transactions(ctx context.Context, req zarinpal.TransactionsRequest) ([]zarinpal.Session, error) {
	if strings.TrimSpace(req.TerminalID) == "" {
		return nil, domain.NewMissingRequiredFieldError("terminal_id")
	}
	sessions, err := s.gateway.Transactions(ctx, req)
	if err != nil {
		return nil, mapGatewayError(err)
	}
	return sessions, nil
}

func (s *CheckoutService) Refund(ctx context.Context, req zarinpal.RefundRequest) (*zarinpal.RefundResponse, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, domain.NewMissingRequiredFieldError("session_id")
	}
	if req.Amount <= 0 {
		return nil, domain.NewInvalidAmountError(req.Amount)
	}
	resp, err := s.gateway.Refund(ctx, req)
	if err != nil {
		return nil, mapGatewayError(err)
	}
	return resp, nil
}

// Reconcile settles payments whose callback never arrived. Gateway failures on
// individual payments are logged and skipped; only a failed UnVerified listing aborts.
func (s *CheckoutService) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	var report ReconcileReport

	unverified, err := s.gateway.UnVerified(ctx, zarinpal.UnVerifiedRequest{})
	if err != nil {
		return report, mapGatewayError(err)
	}

	seen := make(map[string]bool, len(unverified.Authorities))
	for _, entry := range unverified.Authorities {
		if len(seen) >= limit {
			break
		}
		seen[entry.Authority] = true

		payment, err := s.repo.FindByAuthority(ctx, entry.Authority)
		if err != nil {
			if !domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
				s.logger.Error("failed to load unverified payment", "authority", entry.Authority, "error", err)
			}
			continue
		}
		if payment.Status != domain.StatusPending {
			continue
		}
		s.settle(ctx, payment, &report)
	}

	pending, err := s.repo.FindPending(ctx, staleAfter, limit)
	if err != nil {
		return report, fmt.Errorf("failed to find pending payments: %w", err)
	}

	for _, payment := range pending {
		if seen[payment.Authority] {
			continue
		}

		inquiry, err := s.gateway.Inquiry(ctx, zarinpal.InquiryRequest{Authority: payment.Authority})
		if err != nil {
			s.logger.Warn("inquiry failed", "authority", payment.Authority, "error", err)
			continue
		}

		switch inquiry.Status {
		case inquiryPaid, inquiryVerified:
			s.settle(ctx, payment, &report)
		case inquiryFailed:
			canceled, err := s.transition(ctx, payment.Authority, func(p *domain.Payment) (bool, error) {
				if p.Status != domain.StatusPending {
					return false, nil
				}
				return true, p.Cancel()
			})
			if err != nil {
				s.logger.Error("failed to cancel payment", "authority", payment.Authority, "error", err)
				continue
			}
			if canceled.Status == domain.StatusCanceled {
				report.Canceled++
			}
		}
	}

	return report, nil
}

func (s *CheckoutService) settle(ctx context.Context, payment *domain.Payment, report *ReconcileReport) {
	settled, err := s.verify(ctx, payment)
	if err != nil {
		s.logger.Warn("verification failed", "authority", payment.Authority, "error", err)
		return
	}
	switch settled.Status {
	case domain.StatusVerified:
		report.Verified++
	case domain.StatusFailed:
		report.Failed++
	}
}

// verify asks the gateway to settle a PENDING payment. A rejection moves the
// payment to FAILED and is not an error; transport problems leave it PENDING.
// The gateway call runs outside the row lock; the outcome is applied to the
// row as it stands afterwards.
func (s *CheckoutService) verify(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	resp, err := s.gateway.Verify(ctx, zarinpal.VerifyRequest{
		Amount:    payment.Amount,
		Authority: payment.Authority,
	})
	if err != nil {
		gwErr, ok := zarinpal.IsGatewayError(err)
		if !ok || gwErr.IsRetryable() || gwErr.Code == 0 {
			return nil, domain.NewGatewayUnavailableError(err)
		}

		s.logger.Warn("gateway rejected verification",
			"authority", payment.Authority,
			"code", gwErr.Code,
			"message", gwErr.Message,
		)
		return s.transition(ctx, payment.Authority, func(p *domain.Payment) (bool, error) {
			if p.Status != domain.StatusPending {
				return false, nil
			}
			return true, p.Fail(gwErr.Code)
		})
	}

	if resp.AlreadyVerified() {
		s.logger.Info("payment was already verified", "authority", payment.Authority, "ref_id", resp.RefID)
	}

	return s.transition(ctx, payment.Authority, func(p *domain.Payment) (bool, error) {
		switch p.Status {
		case domain.StatusPending:
		case domain.StatusCanceled:
			s.logger.Warn("gateway settled a canceled payment", "authority", p.Authority, "ref_id", resp.RefID)
		case domain.StatusVerified:
			return false, nil
		default:
			s.logger.Error("gateway settled a payment that can no longer be verified",
				"authority", p.Authority,
				"status", p.Status,
				"ref_id", resp.RefID,
			)
			return false, nil
		}
		return true, p.Verify(resp.RefID, resp.CardPan, time.Now().UTC())
	})
}

// transition locks the payment row, lets apply change it and persists the
// result in one transaction. apply reports false to leave the row untouched.
func (s *CheckoutService) transition(ctx context.Context, authority string, apply func(*domain.Payment) (bool, error)) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.repo.WithTx(ctx, func(tx ports.PaymentRepository) error {
		p, err := tx.FindByAuthorityForUpdate(ctx, authority)
		if err != nil {
			return err
		}

		changed, err := apply(p)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.Update(ctx, p); err != nil {
				return fmt.Errorf("failed to update payment: %w", err)
			}
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *CheckoutService) validate(cmd StartCommand) error {
	if strings.TrimSpace(cmd.Description) == "" {
		return domain.NewMissingRequiredFieldError("description")
	}
	if cmd.Amount <= 0 {
		return domain.NewInvalidAmountError(cmd.Amount)
	}
	for _, w := range cmd.Wages {
		if !w.IsValid() {
			return domain.NewInvalidRequestError(fmt.Errorf("invalid wage split for %q", w.IBAN))
		}
	}
	return nil
}

func mapGatewayError(err error) error {
	if _, ok := zarinpal.IsValidationError(err); ok {
		return domain.NewInvalidRequestError(err)
	}
	if errors.Is(err, zarinpal.ErrMissingAccessToken) {
		return domain.NewInvalidRequestError(err)
	}
	if gwErr, ok := zarinpal.IsGatewayError(err); ok && !gwErr.IsRetryable() && gwErr.Code != 0 {
		return domain.NewGatewayRejectedError(err)
	}
	return domain.NewGatewayUnavailableError(err)
}
