package zarinpal

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// codec is shared by the request helpers and the transport. Unknown fields are
// ignored on decode.
var codec = sonic.ConfigStd

var errNotAnObject = errors.New("expected a JSON object")

// ToJSON encodes the request with the gateway's field names. Nil optional fields
// are omitted. With pretty set the output is indented by two spaces.
func (r CreatePaymentRequest) ToJSON(pretty bool) ([]byte, error) {
	if pretty {
		return codec.MarshalIndent(r, "", "  ")
	}
	return codec.Marshal(r)
}

// ParseCreatePaymentRequest decodes a request produced by ToJSON or sent by the
// gateway. Malformed input, or input missing description, callback_url, amount
// or any wage field, yields a *DecodeError.
func ParseCreatePaymentRequest(data []byte) (CreatePaymentRequest, error) {
	const op = "create payment request"

	var req CreatePaymentRequest
	if err := decodeObject(data, &req); err != nil {
		return CreatePaymentRequest{}, &DecodeError{Op: op, Err: err}
	}

	var present requiredRequestFields
	if err := codec.Unmarshal(bytes.TrimSpace(data), &present); err != nil {
		return CreatePaymentRequest{}, &DecodeError{Op: op, Err: err}
	}
	if err := present.check(); err != nil {
		return CreatePaymentRequest{}, &DecodeError{Op: op, Err: err}
	}
	return req, nil
}

// requiredRequestFields mirrors the keys a request cannot omit. A nil pointer
// means the key was absent.
type requiredRequestFields struct {
	Description *string `json:"description"`
	CallbackURL *string `json:"callback_url"`
	Amount      *int64  `json:"amount"`
	Wages       []struct {
		IBAN        *string `json:"iban"`
		Amount      *int64  `json:"amount"`
		Description *string `json:"description"`
	} `json:"wages"`
}

func (f requiredRequestFields) check() error {
	switch {
	case f.Description == nil:
		return missingField("description")
	case f.CallbackURL == nil:
		return missingField("callback_url")
	case f.Amount == nil:
		return missingField("amount")
	}
	for i, w := range f.Wages {
		switch {
		case w.IBAN == nil:
			return missingField(fmt.Sprintf("wages[%d].iban", i))
		case w.Amount == nil:
			return missingField(fmt.Sprintf("wages[%d].amount", i))
		case w.Description == nil:
			return missingField(fmt.Sprintf("wages[%d].description", i))
		}
	}
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("missing field %q", name)
}

// decodeObject rejects anything that is not a JSON object before handing it to
// the codec, so that "null" cannot decode into a zero value.
func decodeObject(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errNotAnObject
	}
	return codec.Unmarshal(trimmed, v)
}
