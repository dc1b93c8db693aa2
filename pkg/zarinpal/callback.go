package zarinpal

import (
	"errors"
	"net/url"
	"strings"
)

const (
	CallbackStatusOK  = "OK"
	CallbackStatusNOK = "NOK"
)

var ErrMissingAuthority = errors.New("zarinpal: callback has no Authority")

// Callback is what the gateway appends to the callback URL when the customer
// returns from the payment page.
type Callback struct {
	Authority string
	Status    string
}

// Paid reports whether the customer completed the payment. A paid callback still
// has to be verified.
func (c Callback) Paid() bool {
	return c.Status == CallbackStatusOK
}

func ParseCallback(query url.Values) (Callback, error) {
	authority := strings.TrimSpace(query.Get("Authority"))
	if authority == "" {
		return Callback{}, ErrMissingAuthority
	}
	return Callback{
		Authority: authority,
		Status:    strings.ToUpper(strings.TrimSpace(query.Get("Status"))),
	}, nil
}
