package zarinpal

// CreatePaymentBuilder assembles a CreatePaymentRequest with chained setters.
// A builder is meant for one caller; it is not safe for concurrent use.
type CreatePaymentBuilder struct {
	merchantID  *string
	sandbox     *bool
	description string
	callbackURL string
	amount      int64
	metadata    *Metadata
	referrerID  *string
	currency    *string
	cardPan     *string
	wages       []WageSplit
}

func NewCreatePaymentBuilder() *CreatePaymentBuilder {
	return &CreatePaymentBuilder{}
}

func (b *CreatePaymentBuilder) Merchant(id string) *CreatePaymentBuilder {
	b.merchantID = String(id)
	return b
}

func (b *CreatePaymentBuilder) Sandbox(sandbox bool) *CreatePaymentBuilder {
	b.sandbox = Bool(sandbox)
	return b
}

func (b *CreatePaymentBuilder) Description(text string) *CreatePaymentBuilder {
	b.description = text
	return b
}

func (b *CreatePaymentBuilder) Callback(url string) *CreatePaymentBuilder {
	b.callbackURL = url
	return b
}

func (b *CreatePaymentBuilder) Amount(amount int64) *CreatePaymentBuilder {
	b.amount = amount
	return b
}

// Metadata sets contact details. Blank mobile and email clear the metadata.
func (b *CreatePaymentBuilder) Metadata(mobile, email *string) *CreatePaymentBuilder {
	b.metadata = NewMetadata(mobile, email)
	return b
}

func (b *CreatePaymentBuilder) Referrer(id *string) *CreatePaymentBuilder {
	b.referrerID = id
	return b
}

func (b *CreatePaymentBuilder) Currency(code *string) *CreatePaymentBuilder {
	b.currency = code
	return b
}

func (b *CreatePaymentBuilder) CardPan(pan *string) *CreatePaymentBuilder {
	b.cardPan = pan
	return b
}

func (b *CreatePaymentBuilder) Wage(iban string, amount int64, description string) *CreatePaymentBuilder {
	b.wages = append(b.wages, WageSplit{IBAN: iban, Amount: amount, Description: description})
	return b
}

// Build returns the assembled request. It does not validate; see
// CreatePaymentRequest.IsValidBasic and IsValidStrict.
func (b *CreatePaymentBuilder) Build() CreatePaymentRequest {
	var wages []WageSplit
	if len(b.wages) > 0 {
		wages = make([]WageSplit, len(b.wages))
		copy(wages, b.wages)
	}

	return CreatePaymentRequest{
		MerchantID:  b.merchantID,
		SandBox:     b.sandbox,
		Description: b.description,
		CallbackURL: b.callbackURL,
		Amount:      b.amount,
		Metadata:    b.metadata,
		ReferrerID:  b.referrerID,
		Currency:    b.currency,
		CardPan:     b.cardPan,
		Wages:       wages,
	}
}
