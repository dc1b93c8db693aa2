package zarinpal

// Config holds the merchant settings shared by every request a Client sends.
// It is read-only after construction and safe for concurrent use.
type Config struct {
	MerchantID string
	Sandbox    bool

	// AccessToken authorizes the GraphQL operations (Transactions, Refund).
	AccessToken string
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
