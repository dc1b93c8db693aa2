package ports

import "github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"

// PaymentGateway is the external payment gateway the checkout talks to.
type PaymentGateway = zarinpal.PaymentService
