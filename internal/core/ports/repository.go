package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
)

// PaymentRepository stores checkout payments keyed by gateway authority.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByAuthority(ctx context.Context, authority string) (*domain.Payment, error)
	// FindByAuthorityForUpdate loads the payment and locks its row until the
	// surrounding transaction ends. Only meaningful inside WithTx.
	FindByAuthorityForUpdate(ctx context.Context, authority string) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
	// FindPending returns PENDING payments created more than olderThan ago, oldest first.
	FindPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)

	// WithTx executes a function within a database transaction.
	WithTx(ctx context.Context, fn func(PaymentRepository) error) error
}
