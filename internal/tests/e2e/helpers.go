package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/adapters/handler"
	"github.com/DanielPopoola/zarinpal-go/internal/config"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient wraps HTTP calls to the checkout API
type TestClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type apiEnvelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   *handler.APIError `json:"error"`
}

func (c *TestClient) do(t *testing.T, method, path string, body any) (*handler.PaymentResponse, error) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))

	if !env.Success {
		return nil, fmt.Errorf("status %d: %s: %s", resp.StatusCode, env.Error.Code, env.Error.Message)
	}

	var payment handler.PaymentResponse
	require.NoError(t, json.Unmarshal(env.Data, &payment))
	return &payment, nil
}

func (c *TestClient) Start(t *testing.T, req handler.StartPaymentRequest) (*handler.PaymentResponse, error) {
	return c.do(t, http.MethodPost, "/payments", req)
}

func (c *TestClient) Callback(t *testing.T, authority, status string) (*handler.PaymentResponse, error) {
	return c.do(t, http.MethodGet, "/payments/callback?Authority="+authority+"&Status="+status, nil)
}

func (c *TestClient) Status(t *testing.T, authority string) (*handler.PaymentResponse, error) {
	return c.do(t, http.MethodGet, "/payments/"+authority, nil)
}

func (c *TestClient) Reverse(t *testing.T, authority string) (*handler.PaymentResponse, error) {
	return c.do(t, http.MethodPost, "/payments/"+authority+"/reverse", nil)
}

// startPostgres runs a throwaway database and returns its connection settings.
func startPostgres(ctx context.Context) (testcontainers.Container, *config.DatabaseConfig, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return container, nil, err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return container, nil, err
	}

	return container, &config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Name:            "testdb",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}, nil
}

type fakeSession struct {
	amount   int64
	paid     bool
	verified bool
	reversed bool
	refID    int64
}

// fakeZarinPal is an in-memory stand-in for the gateway's REST API.
type fakeZarinPal struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*fakeSession
}

func newFakeZarinPal() *fakeZarinPal {
	return &fakeZarinPal{sessions: make(map[string]*fakeSession)}
}

func (f *fakeZarinPal) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /pg/v4/payment/request.json", f.request)
	mux.HandleFunc("POST /pg/v4/payment/verify.json", f.verify)
	mux.HandleFunc("POST /pg/v4/payment/inquiry.json", f.inquiry)
	mux.HandleFunc("POST /pg/v4/payment/unVerified.json", f.unVerified)
	mux.HandleFunc("POST /pg/v4/payment/reverse.json", f.reverse)
	return mux
}

// Pay marks the session as paid, as if the customer completed the bank page.
func (f *fakeZarinPal) Pay(authority string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[authority]; ok {
		s.paid = true
	}
}

type gatewayBody struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
	Amount     int64  `json:"amount"`
}

func (f *fakeZarinPal) request(w http.ResponseWriter, r *http.Request) {
	var body gatewayBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.seq++
	authority := fmt.Sprintf("A%035d", f.seq)
	f.sessions[authority] = &fakeSession{amount: body.Amount}
	f.mu.Unlock()

	writeData(w, map[string]any{
		"code": 100, "message": "Success", "authority": authority, "fee_type": "Merchant", "fee": 0,
	})
}

func (f *fakeZarinPal) verify(w http.ResponseWriter, r *http.Request) {
	var body gatewayBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[body.Authority]
	switch {
	case !ok:
		writeError(w, -54, "Invalid authority.")
	case !s.paid:
		writeError(w, -51, "Session is not valid, session is not active paid try.")
	case s.amount != body.Amount:
		writeError(w, -50, "Session is not valid, amounts values is not the same.")
	case s.verified:
		writeData(w, map[string]any{"code": 101, "message": "Verified", "ref_id": s.refID, "card_pan": "502229******5995"})
	default:
		s.verified = true
		s.refID = int64(1000 + len(body.Authority))
		writeData(w, map[string]any{"code": 100, "message": "Paid", "ref_id": s.refID, "card_pan": "502229******5995", "fee_type": "Merchant"})
	}
}

func (f *fakeZarinPal) inquiry(w http.ResponseWriter, r *http.Request) {
	var body gatewayBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[body.Authority]
	if !ok {
		writeError(w, -54, "Invalid authority.")
		return
	}

	status := "IN_BANK"
	switch {
	case s.reversed:
		status = "REVERSED"
	case s.verified:
		status = "VERIFIED"
	case s.paid:
		status = "PAID"
	}
	writeData(w, map[string]any{"code": 100, "message": "Success", "status": status})
}

func (f *fakeZarinPal) unVerified(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	authorities := []map[string]any{}
	for authority, s := range f.sessions {
		if s.paid && !s.verified {
			authorities = append(authorities, map[string]any{"authority": authority, "amount": s.amount})
		}
	}
	writeData(w, map[string]any{"code": 100, "message": "Success", "authorities": authorities})
}

func (f *fakeZarinPal) reverse(w http.ResponseWriter, r *http.Request) {
	var body gatewayBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[body.Authority]
	if !ok || !s.verified || s.reversed {
		writeError(w, -63, "Maximum time for reverse this session is expired.")
		return
	}
	s.reversed = true
	writeData(w, map[string]any{"code": 100, "message": "Reversed"})
}

func writeData(w http.ResponseWriter, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "errors": []any{}})
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data":   []any{},
		"errors": map[string]any{"code": code, "message": message, "validations": []any{}},
	})
}
