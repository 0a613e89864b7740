// Package paystack adapts the Paystack REST API and webhooks to the gateway
// contract.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultBaseURL = "https://api.paystack.co"

// Client calls the Paystack REST API directly.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: httpClient,
	}
}

// APIError is a non-success Paystack response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack api error (%d): %s", e.StatusCode, e.Message)
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode >= 400 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Plan        string            `json:"plan,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type createPlanRequest struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
	Currency string `json:"currency"`
}

type planResponse struct {
	PlanCode string `json:"plan_code"`
}

type refundRequest struct {
	Transaction  string `json:"transaction"`
	Amount       int64  `json:"amount,omitempty"`
	Currency     string `json:"currency,omitempty"`
	MerchantNote string `json:"merchant_note,omitempty"`
}

type refundResponse struct {
	ID       minorAmount `json:"id"`
	Status   string      `json:"status"`
	Amount   minorAmount `json:"amount"`
	Currency string      `json:"currency"`
}

type subscriptionResponse struct {
	SubscriptionCode string     `json:"subscription_code"`
	Status           string     `json:"status"`
	NextPaymentDate  string     `json:"next_payment_date"`
	CreatedAt        string     `json:"createdAt"`
	Plan             planRef    `json:"plan"`
	Customer         customer   `json:"customer"`
	Metadata         flexValues `json:"metadata"`
}

func (c *Client) InitializeTransaction(ctx context.Context, req *initializeRequest) (*initializeResponse, error) {
	var out initializeResponse
	if err := c.post(ctx, "/transaction/initialize", req, &out); err != nil {
		return nil, fmt.Errorf("initialize transaction: %w", err)
	}
	return &out, nil
}

func (c *Client) CreatePlan(ctx context.Context, req *createPlanRequest) (string, error) {
	var out planResponse
	if err := c.post(ctx, "/plan", req, &out); err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}
	if out.PlanCode == "" {
		return "", fmt.Errorf("create plan: missing plan code in response")
	}
	return out.PlanCode, nil
}

func (c *Client) CreateRefund(ctx context.Context, req *refundRequest) (*refundResponse, error) {
	var out refundResponse
	if err := c.post(ctx, "/refund", req, &out); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return &out, nil
}

func (c *Client) FetchSubscription(ctx context.Context, code string) (*subscriptionResponse, error) {
	var out subscriptionResponse
	if err := c.get(ctx, "/subscription/"+code, &out); err != nil {
		return nil, fmt.Errorf("fetch subscription: %w", err)
	}
	return &out, nil
}
