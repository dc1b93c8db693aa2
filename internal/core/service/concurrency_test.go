package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
	"github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutService_CancelDuringReconcileVerify(t *testing.T) {
	repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))

	inVerify := make(chan struct{})
	release := make(chan struct{})
	gateway := &MockGateway{
		UnVerifiedFn: func(ctx context.Context, req zarinpal.UnVerifiedRequest) (*zarinpal.UnVerifiedResponse, error) {
			return &zarinpal.UnVerifiedResponse{Authorities: []zarinpal.UnVerifiedAuthority{{Authority: "A1"}}}, nil
		},
		VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
			close(inVerify)
			<-release
			return &zarinpal.VerifyResponse{Code: zarinpal.CodeSuccess, RefID: 201, CardPan: "502229******5995"}, nil
		},
	}
	service := newTestService(repo, gateway)

	reports := make(chan ReconcileReport, 1)
	go func() {
		report, err := service.Reconcile(context.Background(), 10)
		assert.NoError(t, err)
		reports <- report
	}()

	<-inVerify
	canceled, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusNOK})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, canceled.Status)

	close(release)
	report := <-reports

	assert.Equal(t, 1, report.Verified)
	stored, err := repo.FindByAuthority(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, stored.Status)
	require.NotNil(t, stored.RefID)
	assert.Equal(t, int64(201), *stored.RefID)
}

func TestCheckoutService_LateRejectionKeepsVerified(t *testing.T) {
	repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))

	var calls int
	var mu sync.Mutex
	gateway := &MockGateway{
		VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				time.Sleep(50 * time.Millisecond)
				return nil, &zarinpal.GatewayError{Code: zarinpal.CodeSessionNotPaid, StatusCode: 200}
			}
			return &zarinpal.VerifyResponse{Code: zarinpal.CodeSuccess, RefID: 7}, nil
		},
	}
	service := newTestService(repo, gateway)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusOK})
		assert.NoError(t, err)
	}()

	time.Sleep(10 * time.Millisecond)
	verified, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusOK})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, verified.Status)

	wg.Wait()

	stored, err := repo.FindByAuthority(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, stored.Status)
	assert.Nil(t, stored.FailureCode)
}

func TestCheckoutService_ConcurrentCallbacks(t *testing.T) {
	repo := NewMockPaymentRepository(pendingPayment(t, "A1", 0))
	gateway := &MockGateway{
		VerifyFn: func(ctx context.Context, req zarinpal.VerifyRequest) (*zarinpal.VerifyResponse, error) {
			time.Sleep(20 * time.Millisecond)
			return &zarinpal.VerifyResponse{Code: zarinpal.CodeSuccess, RefID: 201}, nil
		},
	}
	service := newTestService(repo, gateway)

	const numRequests = 5
	var wg sync.WaitGroup
	results := make(chan *domain.Payment, numRequests)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := service.HandleCallback(context.Background(), zarinpal.Callback{Authority: "A1", Status: zarinpal.CallbackStatusOK})
			assert.NoError(t, err)
			results <- p
		}()
	}

	wg.Wait()
	close(results)

	for p := range results {
		if assert.NotNil(t, p) {
			assert.Equal(t, domain.StatusVerified, p.Status)
			assert.Equal(t, int64(201), *p.RefID)
		}
	}

	stored, err := repo.FindByAuthority(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, stored.Status)
}
