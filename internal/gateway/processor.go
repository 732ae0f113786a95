// Package gateway contains the client for the external payment
// processor.  The processor is treated as a black box behind a small
// HTTP contract: create a payment intent, retrieve its current
// status, and receive signed webhook events.  Nothing in this package
// touches local storage; reconciliation lives in the handlers and
// repositories.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Intent is the processor's view of one settlement attempt.  ID is
// the server-side reference stored locally as provider_ref;
// ClientSecret is handed to the client application to drive the
// processor's own checkout UI.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// IntentStatusSucceeded is the only processor status that settles a
// payment.  Every other value (requires_payment_method, processing,
// canceled, ...) is non-success and leaves local state untouched.
const IntentStatusSucceeded = "succeeded"

// Client talks to the payment processor's REST API.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient builds a processor client.  The timeout bounds every call;
// on timeout the local payment stays PENDING and the operation is safe
// to retry.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type createIntentReq struct {
	AmountCents uint32            `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreateIntent registers a new payment intent for the given amount and
// returns the processor's handle for it.
func (c *Client) CreateIntent(ctx context.Context, amountCents uint32, currency, description string, metadata map[string]string) (*Intent, error) {
	body, err := json.Marshal(createIntentReq{
		AmountCents: amountCents,
		Currency:    currency,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req)
}

// RetrieveIntent fetches the current state of a payment intent by id.
func (c *Client) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payment_intents/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Intent, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment processor unreachable: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment processor returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode processor response: %w", err)
	}
	return &in, nil
}
