package zarinpal

import (
	"fmt"
	"strings"
)

// CreatePaymentRequest is the body of a payment request. Optional fields are nil
// when absent and are left out of the encoded JSON.
//
// Methods on CreatePaymentRequest never modify the receiver; the ones that change
// a field return a new request.
type CreatePaymentRequest struct {
	MerchantID  *string     `json:"merchant_id,omitempty"`
	SandBox     *bool       `json:"sandBox,omitempty"`
	Description string      `json:"description"`
	CallbackURL string      `json:"callback_url"`
	Amount      int64       `json:"amount"`
	Metadata    *Metadata   `json:"metadata,omitempty"`
	ReferrerID  *string     `json:"referrer_id,omitempty"`
	Currency    *string     `json:"currency,omitempty"`
	CardPan     *string     `json:"cardPan,omitempty"`
	Wages       []WageSplit `json:"wages,omitempty"`
}

// Metadata carries the payer's contact details.
type Metadata struct {
	Mobile *string `json:"mobile,omitempty"`
	Email  *string `json:"email,omitempty"`
}

// WageSplit routes part of a payment's amount to another bank account.
type WageSplit struct {
	IBAN        string `json:"iban"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// NewMetadata returns contact metadata, or nil when both mobile and email are blank.
func NewMetadata(mobile, email *string) *Metadata {
	if isBlank(mobile) && isBlank(email) {
		return nil
	}
	return &Metadata{Mobile: mobile, Email: email}
}

// RequestOption sets an optional field of a request built by
// NewCreatePaymentRequestWithContact.
type RequestOption func(*CreatePaymentRequest)

func WithSandBox(sandbox bool) RequestOption {
	return func(r *CreatePaymentRequest) { r.SandBox = Bool(sandbox) }
}

func WithReferrerID(id *string) RequestOption {
	return func(r *CreatePaymentRequest) { r.ReferrerID = id }
}

func WithCurrency(code *string) RequestOption {
	return func(r *CreatePaymentRequest) { r.Currency = code }
}

func WithCardPan(pan *string) RequestOption {
	return func(r *CreatePaymentRequest) { r.CardPan = pan }
}

// WithWages copies wages into the request. An empty list leaves Wages nil.
func WithWages(wages ...WageSplit) RequestOption {
	return func(r *CreatePaymentRequest) {
		if len(wages) == 0 {
			r.Wages = nil
			return
		}
		r.Wages = append([]WageSplit(nil), wages...)
	}
}

// NewCreatePaymentRequestWithContact builds a request from raw contact fields
// instead of a Metadata value. Metadata is set only if mobile or email is non-blank.
func NewCreatePaymentRequestWithContact(
	merchantID, description, callbackURL string,
	amount int64,
	mobile, email *string,
	opts ...RequestOption,
) CreatePaymentRequest {
	req := CreatePaymentRequest{
		MerchantID:  String(merchantID),
		Description: description,
		CallbackURL: callbackURL,
		Amount:      amount,
		Metadata:    NewMetadata(mobile, email),
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// WithConfig fills MerchantID and SandBox from cfg when they are nil.
// Fields already set on the request are kept.
func (r CreatePaymentRequest) WithConfig(cfg Config) CreatePaymentRequest {
	if r.MerchantID == nil && cfg.MerchantID != "" {
		r.MerchantID = String(cfg.MerchantID)
	}
	if r.SandBox == nil {
		r.SandBox = Bool(cfg.Sandbox)
	}
	return r
}

func (r CreatePaymentRequest) IsSandboxMode() bool {
	return r.SandBox != nil && *r.SandBox
}

// AddWage appends a split. The split is not validated.
func (r CreatePaymentRequest) AddWage(iban string, amount int64, description string) CreatePaymentRequest {
	wages := make([]WageSplit, len(r.Wages), len(r.Wages)+1)
	copy(wages, r.Wages)
	r.Wages = append(wages, WageSplit{IBAN: iban, Amount: amount, Description: description})
	return r
}

// RemoveWageByIBAN drops every split whose IBAN equals iban, keeping the order of
// the rest. An empty result is stored as nil.
func (r CreatePaymentRequest) RemoveWageByIBAN(iban string) CreatePaymentRequest {
	var wages []WageSplit
	for _, w := range r.Wages {
		if w.IBAN != iban {
			wages = append(wages, w)
		}
	}
	r.Wages = wages
	return r
}

// WagesTotal is the sum of all split amounts, 0 without splits.
func (r CreatePaymentRequest) WagesTotal() int64 {
	var total int64
	for _, w := range r.Wages {
		total += w.Amount
	}
	return total
}

func (r CreatePaymentRequest) SumMatches() bool {
	return r.WagesTotal() == r.Amount
}

// IsValidBasic reports whether the merchant id, description and callback URL are
// non-blank and the amount is positive.
func (r CreatePaymentRequest) IsValidBasic() bool {
	return !isBlank(r.MerchantID) &&
		strings.TrimSpace(r.Description) != "" &&
		strings.TrimSpace(r.CallbackURL) != "" &&
		r.Amount > 0
}

// IsValidStrict additionally requires the splits to add up to the amount. A request
// without splits and a positive amount is therefore never strictly valid.
func (r CreatePaymentRequest) IsValidStrict() bool {
	return r.IsValidBasic() && r.SumMatches()
}

// Validate applies the IsValidBasic rules and names every field that fails them.
func (r CreatePaymentRequest) Validate() error {
	var fields []FieldError
	if isBlank(r.MerchantID) {
		fields = append(fields, FieldError{Field: "merchant_id", Reason: "is required"})
	}
	if strings.TrimSpace(r.Description) == "" {
		fields = append(fields, FieldError{Field: "description", Reason: "is required"})
	}
	if strings.TrimSpace(r.CallbackURL) == "" {
		fields = append(fields, FieldError{Field: "callback_url", Reason: "is required"})
	}
	if r.Amount <= 0 {
		fields = append(fields, FieldError{Field: "amount", Reason: "must be positive"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (r CreatePaymentRequest) ShortInfo() string {
	merchant := "null"
	if r.MerchantID != nil {
		merchant = *r.MerchantID
	}
	return fmt.Sprintf("Payment(amount=%d, desc=%s, merchant=%s)", r.Amount, r.Description, merchant)
}

// String renders the request as indented JSON.
func (r CreatePaymentRequest) String() string {
	data, err := r.ToJSON(true)
	if err != nil {
		return r.ShortInfo()
	}
	return string(data)
}

func (m Metadata) HasAnyContact() bool {
	return !isBlank(m.Mobile) || !isBlank(m.Email)
}

// Merge combines m with other field by field, preferring other's values.
func (m Metadata) Merge(other Metadata) Metadata {
	merged := m
	if other.Mobile != nil {
		merged.Mobile = other.Mobile
	}
	if other.Email != nil {
		merged.Email = other.Email
	}
	return merged
}

func (m Metadata) SingleLine() string {
	var parts []string
	if m.Mobile != nil {
		parts = append(parts, *m.Mobile)
	}
	if m.Email != nil {
		parts = append(parts, *m.Email)
	}
	return strings.Join(parts, " | ")
}

func (w WageSplit) IsValid() bool {
	return strings.TrimSpace(w.IBAN) != "" && w.Amount > 0 && strings.TrimSpace(w.Description) != ""
}

func (w WageSplit) WithAmount(amount int64) WageSplit {
	w.Amount = amount
	return w
}

func (w WageSplit) ShortLabel() string {
	return fmt.Sprintf("%d to %s", w.Amount, w.IBAN)
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
