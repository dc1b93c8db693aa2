package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	productionBaseURL = "https://payment.zarinpal.com"
	sandboxBaseURL    = "https://sandbox.zarinpal.com"
	defaultGraphQLURL = "https://next.zarinpal.com/api/v4/graphql"
	defaultUserAgent  = "ZarinPalSdk/v1.0.1 (go)"
	defaultTimeout    = 30 * time.Second
)

// PaymentService is the set of operations the gateway offers.
type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	Inquiry(ctx context.Context, req InquiryRequest) (*InquiryResponse, error)
	UnVerified(ctx context.Context, req UnVerifiedRequest) (*UnVerifiedResponse, error)
	Reverse(ctx context.Context, req ReverseRequest) (*ReverseResponse, error)
	Transactions(ctx context.Context, req TransactionsRequest) ([]Session, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	StartPayURL(authority string) string
}

var _ PaymentService = (*Client)(nil)

// Client talks to the gateway over HTTPS. Each call is an independent exchange,
// so a Client may be shared between goroutines.
type Client struct {
	cfg        Config
	baseURL    string
	graphQLURL string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. WithTimeout has no effect on it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the REST host chosen from Config.Sandbox.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithGraphQLURL(endpoint string) Option {
	return func(c *Client) { c.graphQLURL = endpoint }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		baseURL:    productionBaseURL,
		graphQLURL: defaultGraphQLURL,
		userAgent:  defaultUserAgent,
		timeout:    defaultTimeout,
	}
	if cfg.Sandbox {
		c.baseURL = sandboxBaseURL
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

func (c *Client) Config() Config {
	return c.cfg
}

// CreatePayment fills merchant_id and sandBox from the client's Config and
// rejects requests that fail Validate before sending them.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	req = req.WithConfig(c.cfg)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return postREST[CreatePaymentRequest, CreatePaymentResponse](c, ctx, "/pg/v4/payment/request.json", req)
}

func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	req.MerchantID = c.merchantID(req.MerchantID)
	return postREST[VerifyRequest, VerifyResponse](c, ctx, "/pg/v4/payment/verify.json", req)
}

func (c *Client) Inquiry(ctx context.Context, req InquiryRequest) (*InquiryResponse, error) {
	req.MerchantID = c.merchantID(req.MerchantID)
	return postREST[InquiryRequest, InquiryResponse](c, ctx, "/pg/v4/payment/inquiry.json", req)
}

// UnVerified lists authorities that were paid but never verified.
func (c *Client) UnVerified(ctx context.Context, req UnVerifiedRequest) (*UnVerifiedResponse, error) {
	req.MerchantID = c.merchantID(req.MerchantID)
	return postREST[UnVerifiedRequest, UnVerifiedResponse](c, ctx, "/pg/v4/payment/unVerified.json", req)
}

func (c *Client) Reverse(ctx context.Context, req ReverseRequest) (*ReverseResponse, error) {
	req.MerchantID = c.merchantID(req.MerchantID)
	return postREST[ReverseRequest, ReverseResponse](c, ctx, "/pg/v4/payment/reverse.json", req)
}

// StartPayURL is where the customer is sent to pay for authority.
func (c *Client) StartPayURL(authority string) string {
	return c.baseURL + "/pg/StartPay/" + url.PathEscape(authority)
}

func (c *Client) merchantID(id string) string {
	if id != "" {
		return id
	}
	return c.cfg.MerchantID
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type errorBody struct {
	Code        int              `json:"code"`
	Message     string           `json:"message"`
	Validations []map[string]any `json:"validations"`
}

// postREST sends req to a REST endpoint and unwraps the {data, errors} envelope.
func postREST[Req any, Resp any](c *Client, ctx context.Context, path string, req Req) (*Resp, error) {
	body, err := codec.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	raw, status, err := c.do(ctx, c.baseURL+path, body, "")
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := decodeObject(raw, &env); err != nil {
		if !isSuccess(status) {
			return nil, &GatewayError{Message: strings.TrimSpace(string(raw)), StatusCode: status}
		}
		return nil, &DecodeError{Op: path, Err: err}
	}

	if gwErr := gatewayErrorFrom(env.Errors, status); gwErr != nil {
		c.logger.Warn("zarinpal rejected request", "endpoint", path, "code", gwErr.Code, "message", gwErr.Message)
		return nil, gwErr
	}
	if !isSuccess(status) {
		return nil, &GatewayError{Message: http.StatusText(status), StatusCode: status}
	}

	trimmed := bytes.TrimSpace(env.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrEmptyResponse
	}

	var resp Resp
	if err := codec.Unmarshal(trimmed, &resp); err != nil {
		return nil, &DecodeError{Op: path, Err: err}
	}

	return &resp, nil
}

// gatewayErrorFrom reads the envelope's errors member, which is an empty array on
// success and an object (occasionally a one-element array) on failure.
func gatewayErrorFrom(raw json.RawMessage, status int) *GatewayError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var body errorBody
	switch trimmed[0] {
	case '{':
		if err := codec.Unmarshal(trimmed, &body); err != nil {
			return &GatewayError{Message: string(trimmed), StatusCode: status}
		}
	case '[':
		var list []errorBody
		if err := codec.Unmarshal(trimmed, &list); err != nil {
			return &GatewayError{Message: string(trimmed), StatusCode: status}
		}
		if len(list) == 0 {
			return nil
		}
		body = list[0]
	default:
		return nil
	}

	return &GatewayError{
		Code:        body.Code,
		Message:     body.Message,
		StatusCode:  status,
		Validations: body.Validations,
	}
}

func (c *Client) do(ctx context.Context, endpoint string, body []byte, bearer string) ([]byte, int, error) {
	requestID := uuid.NewString()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", requestID)
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("zarinpal request failed", "request_id", requestID, "endpoint", endpoint, "error", err)
		return nil, 0, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("error reading response: %w", err)
	}

	c.logger.Debug("zarinpal response",
		"request_id", requestID,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	return raw, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
