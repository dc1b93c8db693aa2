// Package domain defines the checkout payment entity and its lifecycle.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusVerified PaymentStatus = "VERIFIED"
	StatusCanceled PaymentStatus = "CANCELED"
	StatusFailed   PaymentStatus = "FAILED"
	StatusReversed PaymentStatus = "REVERSED"
)

// Payment is a checkout started against the gateway, keyed by the gateway's authority.
type Payment struct {
	ID          uuid.UUID
	Authority   string
	Amount      int64
	Description string
	CallbackURL string
	Mobile      *string
	Email       *string

	Status      PaymentStatus
	RefID       *int64
	CardPan     *string
	FailureCode *int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	VerifiedAt *time.Time
}

func NewPayment(authority string, amount int64, description, callbackURL string, mobile, email *string) (*Payment, error) {
	if strings.TrimSpace(authority) == "" {
		return nil, NewMissingRequiredFieldError("authority")
	}
	if amount <= 0 {
		return nil, NewInvalidAmountError(amount)
	}

	now := time.Now().UTC()
	return &Payment{
		ID:          uuid.New(),
		Authority:   authority,
		Amount:      amount,
		Description: description,
		CallbackURL: callbackURL,
		Mobile:      mobile,
		Email:       email,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo returns nil if the payment may move to target.
//
// Valid transitions are:
//   - Pending → Verified, Canceled, Failed
//   - Canceled → Verified (the gateway settled a session the customer's redirect reported as NOK)
//   - Verified → Reversed
func (p *Payment) CanTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case StatusPending:
		if target == StatusVerified || target == StatusCanceled || target == StatusFailed {
			return nil
		}
	case StatusCanceled:
		if target == StatusVerified {
			return nil
		}
	case StatusVerified:
		if target == StatusReversed {
			return nil
		}
	}
	return NewInvalidTransitionError(p.Status, target)
}

// IsTerminal reports whether the payment can no longer change. CANCELED is not
// terminal: a late gateway settlement may still verify it.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusFailed, StatusReversed:
		return true
	default:
		return false
	}
}

func (p *Payment) Verify(refID int64, cardPan string, at time.Time) error {
	if err := p.CanTransitionTo(StatusVerified); err != nil {
		return err
	}
	p.Status = StatusVerified
	p.RefID = &refID
	if cardPan != "" {
		p.CardPan = &cardPan
	}
	p.VerifiedAt = &at
	p.UpdatedAt = at
	return nil
}

func (p *Payment) Cancel() error {
	return p.moveTo(StatusCanceled)
}

// Fail records the gateway code that rejected verification.
func (p *Payment) Fail(code int) error {
	if err := p.moveTo(StatusFailed); err != nil {
		return err
	}
	p.FailureCode = &code
	return nil
}

func (p *Payment) Reverse() error {
	return p.moveTo(StatusReversed)
}

func (p *Payment) moveTo(target PaymentStatus) error {
	if err := p.CanTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	p.UpdatedAt = time.Now().UTC()
	return nil
}
