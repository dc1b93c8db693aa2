package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
	"github.com/DanielPopoola/zarinpal-go/internal/core/ports"
	"github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"
)

// MockPaymentRepository stores copies, so callers never share a *domain.Payment
// with each other. WithTx holds a single lock for the whole callback.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	payments map[string]*domain.Payment

	CreateFn          func(ctx context.Context, payment *domain.Payment) error
	UpdateFn          func(ctx context.Context, payment *domain.Payment) error
	FindByAuthorityFn func(ctx context.Context, authority string) (*domain.Payment, error)
	FindPendingFn     func(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)
}

func NewMockPaymentRepository(seed ...*domain.Payment) *MockPaymentRepository {
	m := &MockPaymentRepository{payments: make(map[string]*domain.Payment)}
	for _, p := range seed {
		m.payments[p.Authority] = clonePayment(p)
	}
	return m
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, payment)
	}
	if _, ok := m.payments[payment.Authority]; ok {
		return domain.NewDuplicateAuthorityError(payment.Authority)
	}
	m.payments[payment.Authority] = clonePayment(payment)
	return nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, payment)
	}
	if _, ok := m.payments[payment.Authority]; !ok {
		return domain.NewPaymentNotFoundError(payment.Authority)
	}
	m.payments[payment.Authority] = clonePayment(payment)
	return nil
}

func (m *MockPaymentRepository) FindByAuthority(ctx context.Context, authority string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByAuthorityFn != nil {
		return m.FindByAuthorityFn(ctx, authority)
	}
	if p, ok := m.payments[authority]; ok {
		return clonePayment(p), nil
	}
	return nil, domain.NewPaymentNotFoundError(authority)
}

func (m *MockPaymentRepository) FindByAuthorityForUpdate(ctx context.Context, authority string) (*domain.Payment, error) {
	return m.FindByAuthority(ctx, authority)
}

func (m *MockPaymentRepository) WithTx(ctx context.Context, fn func(ports.PaymentRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *MockPaymentRepository) FindPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindPendingFn != nil {
		return m.FindPendingFn(ctx, olderThan, limit)
	}

	cutoff := time.Now().Add(-olderThan)
	var pending []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.StatusPending && p.CreatedAt.Before(cutoff) {
			pending = append(pending, clonePayment(p))
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	return &c
}

// MockGateway
type MockGateway struct {
	mu    sync.Mutex
	calls map[string]int

	CreatePaymentFn func(ctx context.Context, req zarinpal.CreatePaymentRequest) (*zarinpal.CreatePaymentResponse, error)
	VerifyFn        func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error)
	InquiryFn       func(ctx context.Context, req zarinpal.InquiryRequest) (*zarinpal.InquiryResponse, error)
	UnVerifiedFn    func(ctx context.Context, req zarinpal.UnVerifiedRequest) (*zarinpal.UnVerifiedResponse, error)
	ReverseFn       func(ctx context.Context, req zarinpal.ReverseRequest) (*zarinpal.ReverseResponse, error)
	TransactionsFn  func(ctx context.Context, req zarinpal.TransactionsRequest) ([]zarinpal.Session, error)
	RefundFn        func(ctx context.Context, req zarinpal.RefundRequest) (*zarinpal.RefundResponse, error)
}

func (m *MockGateway) inc(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

func (m *MockGateway) GetCalls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockGateway) CreatePayment(ctx context.Context, req zarinpal.CreatePaymentRequest) (*zarinpal.CreatePaymentResponse, error) {
	m.inc("CreatePayment")
	if m.CreatePaymentFn != nil {
		return m.CreatePaymentFn(ctx, req)
	}
	return &zarinpal.CreatePaymentResponse{
		Code:      zarinpal.CodeSuccess,
		Message:   "Success",
		Authority: "A0000000000000000000000000000wwOGYpd",
		FeeType:   "Merchant",
	}, nil
}

func (m *MockGateway) Verify(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
	m.inc("Verify")
	if m.VerifyFn != nil {
		return m.VerifyFn(ctx, req)
	}
	return &zarinpal.VerifyResponse{
		Code:    zarinpal.CodeSuccess,
		Message: "Verified",
		CardPan: "502229******5995",
		RefID:   201,
	}, nil
}

func (m *MockGateway) Inquiry(ctx context.Context, req zarinpal.InquiryRequest) (*zarinpal.InquiryResponse, error) {
	m.inc("Inquiry")
	if m.InquiryFn != nil {
		return m.InquiryFn(ctx, req)
	}
	return &zarinpal.InquiryResponse{Code: zarinpal.CodeSuccess, Status: "IN_BANK"}, nil
}

func (m *MockGateway) UnVerified(ctx context.Context, req zarinpal.UnVerifiedRequest) (*zarinpal.UnVerifiedResponse, error) {
	m.inc("UnVerified")
	if m.UnVerifiedFn != nil {
		return m.UnVerifiedFn(ctx, req)
	}
	return &zarinpal.UnVerifiedResponse{Code: zarinpal.CodeSuccess}, nil
}

func (m *MockGateway) Reverse(ctx context.Context, req zarinpal.ReverseRequest) (*zarinpal.ReverseResponse, error) {
	m.inc("Reverse")
	if m.ReverseFn != nil {
		return m.ReverseFn(ctx, req)
	}
	return &zarinpal.ReverseResponse{Code: zarinpal.CodeSuccess, Message: "Reversed"}, nil
}

func (m *MockGateway) Transactions(ctx context.Context, req zarinpal.TransactionsRequest) ([]zarinpal.Session, error) {
	m.inc("Transactions")
	if m.TransactionsFn != nil {
		return m.TransactionsFn(ctx, req)
	}
	return nil, nil
}

func (m *MockGateway) Refund(ctx context.Context, req zarinpal.RefundRequest) (*zarinpal.RefundResponse, error) {
	m.inc("Refund")
	if m.RefundFn != nil {
		return m.RefundFn(ctx, req)
	}
	return &zarinpal.RefundResponse{ID: "refund-1", Amount: req.Amount}, nil
}

func (m *MockGateway) StartPayURL(authority string) string {
	return "https://sandbox.zarinpal.com/pg/StartPay/" + authority
}
