// Package zarinpal is a client for the ZarinPal payment gateway.
//
// A payment starts with CreatePayment, which returns an authority. The customer is
// redirected to StartPayURL(authority) and comes back to the request's callback URL,
// where ParseCallback reads the outcome. The merchant then calls Verify to settle the
// payment. Inquiry, UnVerified and Reverse operate on an authority afterwards;
// Transactions and Refund go through the gateway's GraphQL API and need an access token.
package zarinpal
