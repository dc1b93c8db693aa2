package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
	"github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCallbackURL = "https://shop.example/payments/callback"

func newTestService(repo *MockPaymentRepository, gateway *MockGateway) *CheckoutService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCheckoutService(repo, gateway, testCallbackURL, logger)
}

func pendingPayment(t *testing.T, authority string, age time.Duration) *domain.Payment {
	t.Helper()
	payment, err := domain.NewPayment(authority, 10000, "order-1", testCallbackURL, nil, nil)
	require.NoError(t, err)
	payment.CreatedAt = payment.CreatedAt.Add(-age)
	return payment
}

func TestCheckoutService_Start(t *testing.T) {
	t.Run("creates pending payment", func(t *testing.T) {
		repo := NewMockPaymentRepository()
		var sent zarinpal.CreatePaymentRequest
		gateway := &MockGateway{
			CreatePaymentFn: func(ctx context.Context, req zarinpal.CreatePaymentRequest) (*zarinpal.CreatePaymentResponse, error) {
				sent = req
				return &zarinpal.CreatePaymentResponse{Code: zarinpal.CodeSuccess, Authority: "A100"}, nil
			},
		}
		service := newTestService(repo, gateway)

		result, err := service.Start(context.Background(), StartCommand{
			Amount:      10000,
			Description: "order-1",
			Mobile:      zarinpal.String("09120000000"),
		})

		require.NoError(t, err)
		assert.Equal(t, "A100", result.Payment.Authority)
		assert.Equal(t, domain.StatusPending, result.Payment.Status)
		assert.Equal(t, "https://sandbox.zarinpal.com/pg/StartPay/A100", result.PaymentURL)
		assert.Equal(t, "09120000000", *result.Payment.Mobile)
		assert.Nil(t, result.Payment.Email)

		assert.Equal(t, testCallbackURL, sent.CallbackURL)
		require.NotNil(t, sent.Metadata)
		assert.Nil(t, sent.Wages)

		stored, err := repo.FindByAuthority(context.Background(), "A100")
		require.NoError(t, err)
		assert.Equal(t, result.Payment.ID, stored.ID)
	})

	t.Run("sends wage splits", func(t *testing.T) {
		var sent zarinpal.CreatePaymentRequest
		gateway := &MockGateway{
			CreatePaymentFn: func(ctx context.Context, req zarinpal.CreatePaymentRequest) (*zarinpal.CreatePaymentResponse, error) {
				sent = req
				return &zarinpal.CreatePaymentResponse{Code: zarinpal.CodeSuccess, Authority: "A101"}, nil
			},
		}
		service := newTestService(NewMockPaymentRepository(), gateway)

		_, err := service.Start(context.Background(), StartCommand{
			Amount:      1000,
			Description: "split order",
			Wages: []zarinpal.WageSplit{
				{IBAN: "IR1", Amount: 400, Description: "seller"},
				{IBAN: "IR2", Amount: 600, Description: "platform"},
			},
		})

		require.NoError(t, err)
		require.Len(t, sent.Wages, 2)
		assert.Equal(t, int64(1000), sent.WagesTotal())
	})

	t.Run("rejects wages that do not sum to amount", func(t *testing.T) {
		gateway := &MockGateway{}
		service := newTestService(NewMockPaymentRepository(), gateway)

		_, err := service.Start(context.Background(), StartCommand{
			Amount:      1000,
			Description: "split order",
			Wages: []zarinpal.WageSplit{
				{IBAN: "IR1", Amount: 400, Description: "seller"},
				{IBAN: "IR2", Amount: 500, Description: "platform"},
			},
		})

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidRequest))
		assert.Equal(t, 0, gateway.GetCalls("CreatePayment"))
	})

	t.Run("rejects invalid commands before calling the gateway", func(t *testing.T) {
		tests := []struct {
			name string
			cmd  StartCommand
			code string
		}{
			{"missing description", StartCommand{Amount: 1000}, domain.ErrCodeMissingRequiredField},
			{"zero amount", StartCommand{Description: "d"}, domain.ErrCodeInvalidAmount},
			{"negative amount", StartCommand{Description: "d", Amount: -5}, domain.ErrCodeInvalidAmount},
			{"invalid wage", StartCommand{Description: "d", Amount: 10, Wages: []zarinpal.WageSplit{{IBAN: "", Amount: 10, Description: "x"}}}, domain.ErrCodeInvalidRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				gateway := &MockGateway{}
				service := newTestService(NewMockPaymentRepository(), gateway)

				_, err := service.Start(context.Background(), tt.cmd)

				assert.True(t, domain.IsErrorCode(err, tt.code), "got %v", err)
				assert.Equal(t, 0, gateway.GetCalls("CreatePayment"))
			})
		}
	})

	t.Run("maps gateway errors", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			code string
		}{
			{"rejection", &zarinpal.GatewayError{Code: zarinpal.CodeInactiveTerminal, StatusCode: 200}, domain.ErrCodeGatewayRejected},
			{"server error", &zarinpal.GatewayError{StatusCode: 502}, domain.ErrCodeGatewayUnavailable},
			{"rate limited", &zarinpal.GatewayError{Code: zarinpal.CodeTooManyAttempts}, domain.ErrCodeGatewayUnavailable},
			{"transport", errors.New("connection refused"), domain.ErrCodeGatewayUnavailable},
			{"validation", &zarinpal.ValidationError{}, domain.ErrCodeInvalidRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := NewMockPaymentRepository()
				gateway := &MockGateway{
					CreatePaymentFn: func(ctx context.Context, req zarinpal.CreatePaymentRequest) (*zarinpal.CreatePaymentResponse, error) {
						return nil, tt.err
					},
				}
				service := newTestService(repo, gateway)

				_, err := service.Start(context.Background(), StartCommand{Amount: 1000, Description: "d"})

				assert.True(t, domain.IsErrorCode(err, tt.code), "got %v", err)
				assert.ErrorIs(t, err, tt.err)
			})
		}
	})
}

func TestCheckoutService_HandleCallback(t *testing.T) {
	t.Run("verifies a paid callback", func(t *testing.T) {
		repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))
		var verified zarinpal.VerifyRequest
		gateway := &MockGateway{
			VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
				verified = req
				return &zarinpal.VerifyResponse{Code: zarinpal.CodeSuccess, RefID: 7, CardPan: "6037****1234"}, nil
			},
		}
		service := newTestService(repo, gateway)

		payment, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusOK})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusVerified, payment.Status)
		assert.Equal(t, int64(7), *payment.RefID)
		assert.Equal(t, "6037****1234", *payment.CardPan)
		assert.NotNil(t, payment.VerifiedAt)
		assert.Equal(t, zarinpal.VerifyRequest{Amount: 10000, Authority: "A1"}, verified)
	})

	t.Run("treats already verified as verified", func(t *testing.T) {
		repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))
		gateway := &MockGateway{
			VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
				return &zarinpal.VerifyResponse{Code: zarinpal.CodeAlreadyVerified, RefID: 9}, nil
			},
		}
		service := newTestService(repo, gateway)

		payment, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusOK})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusVerified, payment.Status)
		assert.Nil(t, payment.CardPan)
	})

	t.Run("cancels on NOK without calling the gateway", func(t *testing.T) {
		repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))
		gateway := &MockGateway{}
		service := newTestService(repo, gateway)

		payment, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusNOK})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCanceled, payment.Status)
		assert.Equal(t, 0, gateway.GetCalls("Verify"))
	})

	t.Run("marks payment failed when the gateway rejects verification", func(t *testing.T) {
		repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))
		gateway := &MockGateway{
			VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
				return nil, &zarinpal.GatewayError{Code: zarinpal.CodeAmountMismatch, Message: "amount mismatch", StatusCode: 200}
			},
		}
		service := newTestService(repo, gateway)

		payment, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusOK})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, payment.Status)
		assert.Equal(t, zarinpal.CodeAmountMismatch, *payment.FailureCode)
	})

	t.Run("leaves payment pending when the gateway is unreachable", func(t *testing.T) {
		repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))
		gateway := &MockGateway{
			VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
				return nil, context.DeadlineExceeded
			},
		}
		service := newTestService(repo, gateway)

		_, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusOK})

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeGatewayUnavailable))
		stored, _ := repo.FindByAuthority(context.Background(), "A1")
		assert.Equal(t, domain.StatusPending, stored.Status)
	})

	t.Run("is idempotent for settled payments", func(t *testing.T) {
		payment := pendingPayment(t, "A1", 0)
		require.NoError(t, payment.Verify(5, "", time.Now()))
		repo := NewMockPaymentRepository(payment)
		gateway := &MockGateway{}
		service := newTestService(repo, gateway)

		got, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusNOK})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusVerified, got.Status)
		assert.Equal(t, 0, gateway.GetCalls("Verify"))
	})

	t.Run("unknown authority", func(t *testing.T) {
		service := newTestService(NewMockPaymentRepository(), &MockGateway{})

		_, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "missing", Status: zarinpal.CallbackStatusOK})

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
	})
}

func TestCheckoutService_Status(t *testing.T) {
	repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))
	gateway := &MockGateway{
		InquiryFn: func(ctx context.Context, req zarinpal.InquiryRequest) (*zarinpal.InquiryResponse, error) {
			assert.Equal(t, "A1", req.Authority)
			return &zarinpal.InquiryResponse{Code: zarinpal.CodeSuccess, Status: "PAID"}, nil
		},
	}
	service := newTestService(repo, gateway)

	result, err := service.Status(context.Background(), "A1")

	require.NoError(t, err)
	assert.Equal(t, "PAID", result.GatewayStatus)
	assert.Equal(t, domain.StatusPending, result.Payment.Status)
}

func TestCheckoutService_Reverse(t *testing.T) {
	t.Run("reverses a verified payment", func(t *testing.T) {
		payment := pendingPayment(t, "A1", 0)
		require.NoError(t, payment.Verify(5, "", time.Now()))
		gateway := &MockGateway{}
		service := newTestService(NewMockPaymentRepository(payment), gateway)

		got, err := service.Reverse(context.Background(), "A1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusReversed, got.Status)
		assert.Equal(t, 1, gateway.GetCalls("Reverse"))
	})

	t.Run("refuses pending payment without calling the gateway", func(t *testing.T) {
		gateway := &MockGateway{}
		service := newTestService(NewMockPaymentRepository(pendingPayment(t, "A1", 0)), gateway)

		_, err := service.Reverse(context.Background(), "A1")

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
		assert.Equal(t, 0, gateway.GetCalls("Reverse"))
	})

	t.Run("keeps payment verified when the gateway refuses", func(t *testing.T) {
		payment := pendingPayment(t, "A1", 0)
		require.NoError(t, payment.Verify(5, "", time.Now()))
		gateway := &MockGateway{
			ReverseFn: func(ctx context.Context, req zarinpal.ReverseRequest) (*zarinpal.ReverseResponse, error) {
				return nil, &zarinpal.GatewayError{Code: -63, Message: "expired"}
			},
		}
		service := newTestService(NewMockPaymentRepository(payment), gateway)

		_, err := service.Reverse(context.Background(), "A1")

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeGatewayRejected))
		assert.Equal(t, domain.StatusVerified, payment.Status)
	})
}

func TestCheckoutService_TransactionsAndRefund(t *testing.T) {
	t.Run("transactions require a terminal", func(t *testing.T) {
		gateway := &MockGateway{}
		service := newTestService(NewMockPaymentRepository(), gateway)

		_, err := service.Transactions(context.Background(), zarinpal.TransactionsRequest{})

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))
		assert.Equal(t, 0, gateway.GetCalls("Transactions"))
	})

	t.Run("lists transactions", func(t *testing.T) {
		gateway := &MockGateway{
			TransactionsFn: func(ctx context.Context, req zarinpal.TransactionsRequest) ([]zarinpal.Session, error) {
				return []zarinpal.Session{{ID: "s1", Status: "PAID", Amount: 1000}}, nil
			},
		}
		service := newTestService(NewMockPaymentRepository(), gateway)

		sessions, err := service.Transactions(context.Background(), zarinpal.TransactionsRequest{TerminalID: "t1"})

		require.NoError(t, err)
		assert.Len(t, sessions, 1)
	})

	t.Run("refund rejects bad input", func(t *testing.T) {
		service := newTestService(NewMockPaymentRepository(), &MockGateway{})

		_, err := service.Refund(context.Background(), zarinpal.RefundRequest{Amount: 10})
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))

		_, err = service.Refund(context.Background(), zarinpal.RefundRequest{SessionID: "s1"})
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("refund without access token", func(t *testing.T) {
		gateway := &MockGateway{
			RefundFn: func(ctx context.Context, req zarinpal.RefundRequest) (*zarinpal.RefundResponse, error) {
				return nil, zarinpal.ErrMissingAccessToken
			},
		}
		service := newTestService(NewMockPaymentRepository(), gateway)

		_, err := service.Refund(context.Background(), zarinpal.RefundRequest{SessionID: "s1", Amount: 10})

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidRequest))
	})

	t.Run("refunds", func(t *testing.T) {
		service := newTestService(NewMockPaymentRepository(), &MockGateway{})

		resp, err := service.Refund(context.Background(), zarinpal.RefundRequest{SessionID: "s1", Amount: 10})

		require.NoError(t, err)
		assert.Equal(t, int64(10), resp.Amount)
	})
}

func TestCheckoutService_Reconcile(t *testing.T) {
	t.Run("verifies unverified payments and resolves stale ones", func(t *testing.T) {
		unverified := pendingPayment(t, "U1", time.Minute)
		staleFailed := pendingPayment(t, "S1", time.Hour)
		stalePaid := pendingPayment(t, "S2", 2*time.Hour)
		fresh := pendingPayment(t, "F1", time.Minute)
		repo := NewMockPaymentRepository(unverified, staleFailed, stalePaid, fresh)

		gateway := &MockGateway{
			UnVerifiedFn: func(ctx context.Context, req zarinpal.UnVerifiedRequest) (*zarinpal.UnVerifiedResponse, error) {
				return &zarinpal.UnVerifiedResponse{
					Code: zarinpal.CodeSuccess,
					Authorities: []zarinpal.UnVerifiedAuthority{
						{Authority: "U1", Amount: 10000},
						{Authority: "someone-else", Amount: 5},
					},
				}, nil
			},
			InquiryFn: func(ctx context.Context, req zarinpal.InquiryRequest) (*zarinpal.InquiryResponse, error) {
				status := map[string]string{"S1": "FAILED", "S2": "VERIFIED"}[req.Authority]
				return &zarinpal.InquiryResponse{Code: zarinpal.CodeSuccess, Status: status}, nil
			},
			VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
				code := zarinpal.CodeSuccess
				if req.Authority == "S2" {
					code = zarinpal.CodeAlreadyVerified
				}
				return &zarinpal.VerifyResponse{Code: code, RefID: 1}, nil
			},
		}
		service := newTestService(repo, gateway)

		report, err := service.Reconcile(context.Background(), 10)

		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Verified: 2, Canceled: 1}, report)
		for authority, want := range map[string]domain.PaymentStatus{
			"U1": domain.StatusVerified,
			"S1": domain.StatusCanceled,
			"S2": domain.StatusVerified,
			"F1": domain.StatusPending,
		} {
			stored, err := repo.FindByAuthority(context.Background(), authority)
			require.NoError(t, err)
			assert.Equal(t, want, stored.Status, authority)
		}
		assert.Equal(t, 2, gateway.GetCalls("Inquiry"))
	})

	t.Run("counts rejected verifications as failed", func(t *testing.T) {
		repo := NewMockPaymentRepository(pendingPayment(t, "U1", 0))
		gateway := &MockGateway{
			UnVerifiedFn: func(ctx context.Context, req zarinpal.UnVerifiedRequest) (*zarinpal.UnVerifiedResponse, error) {
				return &zarinpal.UnVerifiedResponse{Authorities: []zarinpal.UnVerifiedAuthority{{Authority: "U1"}}}, nil
			},
			VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
				return nil, &zarinpal.GatewayError{Code: zarinpal.CodeSessionNotPaid, StatusCode: 200}
			},
		}
		service := newTestService(repo, gateway)

		report, err := service.Reconcile(context.Background(), 10)

		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Failed: 1}, report)
	})

	t.Run("respects the batch limit", func(t *testing.T) {
		repo := NewMockPaymentRepository(pendingPayment(t, "U1", 0), pendingPayment(t, "U2", 0))
		gateway := &MockGateway{
			UnVerifiedFn: func(ctx context.Context, req zarinpal.UnVerifiedRequest) (*zarinpal.UnVerifiedResponse, error) {
				return &zarinpal.UnVerifiedResponse{Authorities: []zarinpal.UnVerifiedAuthority{{Authority: "U1"}, {Authority: "U2"}}}, nil
			},
		}
		service := newTestService(repo, gateway)

		report, err := service.Reconcile(context.Background(), 1)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Verified)
		assert.Equal(t, 1, gateway.GetCalls("Verify"))
	})

	t.Run("aborts when the unverified list is unavailable", func(t *testing.T) {
		gateway := &MockGateway{
			UnVerifiedFn: func(ctx context.Context, req zarinpal.UnVerifiedRequest) (*zarinpal.UnVerifiedResponse, error) {
				return nil, errors.New("dial tcp: timeout")
			},
		}
		service := newTestService(NewMockPaymentRepository(), gateway)

		_, err := service.Reconcile(context.Background(), 10)

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeGatewayUnavailable))
	})
}
