package zarinpal

type CreatePaymentResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
	FeeType   string `json:"fee_type"`
	Fee       int64  `json:"fee"`
}

type VerifyRequest struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type VerifyResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	CardHash string `json:"card_hash"`
	CardPan  string `json:"card_pan"`
	RefID    int64  `json:"ref_id"`
	FeeType  string `json:"fee_type"`
	Fee      int64  `json:"fee"`
}

// AlreadyVerified reports whether the gateway had settled this authority before.
func (r *VerifyResponse) AlreadyVerified() bool {
	return r.Code == CodeAlreadyVerified
}

type InquiryRequest struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
}

type InquiryResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Status is one of PAID, VERIFIED, IN_BANK, FAILED, REVERSED.
	Status string `json:"status"`
}

type UnVerifiedRequest struct {
	MerchantID string `json:"merchant_id"`
}

type UnVerifiedResponse struct {
	Code        int                   `json:"code"`
	Message     string                `json:"message"`
	Authorities []UnVerifiedAuthority `json:"authorities"`
}

type UnVerifiedAuthority struct {
	Authority   string `json:"authority"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callback_url"`
	Referer     string `json:"referer"`
	Date        string `json:"date"`
}

type ReverseRequest struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
}

type ReverseResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TransactionsRequest filters the sessions of a terminal. Filter is one of PAID,
// VERIFIED, TRASH, ACTIVE, REFUNDED; nil lists everything.
type TransactionsRequest struct {
	TerminalID string  `json:"terminal_id"`
	Filter     *string `json:"filter,omitempty"`
	Limit      *int    `json:"limit,omitempty"`
	Offset     *int    `json:"offset,omitempty"`
}

type Session struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// RefundRequest refunds part or all of a paid session. Method is PAYA or CARD;
// Reason is one of CUSTOMER_REQUEST, DUPLICATE_TRANSACTION, SUSPICIOUS_TRANSACTION, OTHER.
type RefundRequest struct {
	SessionID   string  `json:"session_id"`
	Amount      int64   `json:"amount"`
	Description *string `json:"description,omitempty"`
	Method      *string `json:"method,omitempty"`
	Reason      *string `json:"reason,omitempty"`
}

type RefundResponse struct {
	TerminalID string         `json:"terminal_id"`
	ID         string         `json:"id"`
	Amount     int64          `json:"amount"`
	Timeline   RefundTimeline `json:"timeline"`
}

type RefundTimeline struct {
	RefundAmount int64  `json:"refund_amount"`
	RefundTime   string `json:"refund_time"`
	RefundStatus string `json:"refund_status"`
}
