package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pmflames/ticketing/internal/config"
)

// Client talks to a Paystack-style payment gateway. The gateway's own
// transaction lifecycle is opaque to this service; the client only
// initializes transactions and asks whether a reference was paid.
type Client struct {
	baseURL   string
	secretKey string
	currency  string
	http      *http.Client
}

// NewClient creates a gateway client from configuration
func NewClient(cfg config.PaystackConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		currency:  cfg.Currency,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// InitRequest describes a transaction to initialize. Amount is in the
// gateway's minor unit (kobo).
type InitRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Currency    string `json:"currency,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// InitResult carries the redirect data for a freshly initialized transaction
type InitResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is the gateway's answer for a transaction reference
type Verification struct {
	Paid      bool       `json:"paid"`
	Status    string     `json:"status"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Reference string     `json:"reference"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

// envelope is the gateway's standard response wrapper
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize starts a gateway transaction and returns the authorization URL
func (c *Client) Initialize(ctx context.Context, req InitRequest) (*InitResult, error) {
	if req.Email == "" || req.Amount <= 0 || req.Reference == "" {
		return nil, fmt.Errorf("missing required fields: email, amount, reference")
	}
	if req.Currency == "" {
		req.Currency = c.currency
	}

	env, err := c.post(ctx, "/transaction/initialize", req)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, fmt.Errorf("gateway rejected initialize: %s", env.Message)
	}

	var result InitResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode initialize response: %w", err)
	}
	if result.Reference == "" {
		result.Reference = req.Reference
	}
	return &result, nil
}

// Verify asks the gateway whether the given reference was paid
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	if reference == "" {
		return nil, fmt.Errorf("missing reference")
	}

	endpoint := "/transaction/verify/" + url.PathEscape(reference)
	env, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, fmt.Errorf("gateway rejected verify: %s", env.Message)
	}

	var data struct {
		Status    string     `json:"status"`
		Amount    int64      `json:"amount"`
		Currency  string     `json:"currency"`
		Reference string     `json:"reference"`
		PaidAt    *time.Time `json:"paid_at"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return &Verification{
		Paid:      data.Status == "success",
		Status:    data.Status,
		Amount:    data.Amount,
		Currency:  data.Currency,
		Reference: data.Reference,
		PaidAt:    data.PaidAt,
	}, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, endpoint string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*envelope, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest && env.Message == "" {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return &env, nil
}
