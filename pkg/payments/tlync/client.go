package tlync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://payment.tlync.net/api"

// Client talks to the Tlync payment gateway with bearer-token auth.
type Client struct {
	token   string
	storeID string
	base    string
	hc      *http.Client
}

func New(token, storeID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:   token,
		storeID: storeID,
		base:    baseURL,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// PaymentRequest initiates a hosted checkout.
type PaymentRequest struct {
	Amount      float64 `json:"amount"`
	Phone       string  `json:"phone"`
	Email       string  `json:"email"`
	BackendURL  string  `json:"backend_url"`
	FrontendURL string  `json:"frontend_url"`
	CustomRef   string  `json:"custom_ref"`
}

// Payment is the initiated checkout handle.
type Payment struct {
	URL string `json:"url"`
}

func (c *Client) InitiatePayment(ctx context.Context, p PaymentRequest) (*Payment, error) {
	payload := struct {
		PaymentRequest
		ID string `json:"id"`
	}{PaymentRequest: p, ID: c.storeID}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tlync: encode payment: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/online/payment/initiate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tlync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tlync: initiate payment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tlync: initiate rejected with http %d", resp.StatusCode)
	}
	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("tlync: decode payment: %w", err)
	}
	return &payment, nil
}

// WebhookResult is the callback body posted after a checkout settles.
type WebhookResult struct {
	CustomRef string  `json:"custom_ref"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}
