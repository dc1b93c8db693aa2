package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/domain"
	"github.com/DanielPopoola/zarinpal-go/internal/core/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, authority, amount, description, callback_url, mobile, email,
	status, ref_id, card_pan, failure_code, created_at, updated_at, verified_at`

type PaymentRepository struct {
	pool *pgxpool.Pool
	q    Executor
}

func NewPaymentRepository(db *DB) ports.PaymentRepository {
	return &PaymentRepository{
		pool: db.Pool,
		q:    db.Pool,
	}
}

// Create saves a new payment to the database
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.q.Exec(ctx, query,
		p.ID,
		p.Authority,
		p.Amount,
		p.Description,
		p.CallbackURL,
		p.Mobile,
		p.Email,
		p.Status,
		p.RefID,
		p.CardPan,
		p.FailureCode,
		p.CreatedAt,
		p.UpdatedAt,
		p.VerifiedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewDuplicateAuthorityError(p.Authority)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByAuthority(ctx context.Context, authority string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE authority = $1`

	p, err := scanPayment(r.q.QueryRow(ctx, query, authority))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(authority)
		}
		return nil, err
	}
	return p, nil
}

// FindByAuthorityForUpdate retrieves a payment and locks its row.
func (r *PaymentRepository) FindByAuthorityForUpdate(ctx context.Context, authority string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE authority = $1 FOR UPDATE`

	p, err := scanPayment(r.q.QueryRow(ctx, query, authority))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(authority)
		}
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepository) FindPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	cutoff := time.Now().Add(-olderThan)

	query := `
        SELECT ` + paymentColumns + `
        FROM payments
        WHERE status = 'PENDING' AND created_at < $1
        ORDER BY created_at ASC
        LIMIT $2
    `

	rows, err := r.q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending payments: %w", err)
	}

	pending, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending payments: %w", err)
	}
	return pending, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `
			UPDATE payments SET status = $1, ref_id = $2, card_pan = $3, failure_code = $4,
				verified_at = $5, updated_at = $6
			WHERE authority = $7
	`

	cmdTag, err := r.q.Exec(ctx, query,
		p.Status,
		p.RefID,
		p.CardPan,
		p.FailureCode,
		p.VerifiedAt,
		p.UpdatedAt,
		p.Authority,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment record: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return domain.NewPaymentNotFoundError(p.Authority)
	}
	return nil
}

// WithTx executes a function within a database transaction
func (r *PaymentRepository) WithTx(ctx context.Context, fn func(ports.PaymentRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PaymentRepository{pool: r.pool, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.Authority,
		&p.Amount,
		&p.Description,
		&p.CallbackURL,
		&p.Mobile,
		&p.Email,
		&p.Status,
		&p.RefID,
		&p.CardPan,
		&p.FailureCode,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return &p, nil
}
