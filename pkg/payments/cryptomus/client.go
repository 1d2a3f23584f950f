package cryptomus

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.cryptomus.com/v1"

var ErrBadSignature = errors.New("cryptomus: signature mismatch")

// Client talks to the Cryptomus merchant API. Requests and webhooks are
// both authenticated with an MD5 signature over the base64-encoded JSON
// body concatenated with the API key.
type Client struct {
	merchantID string
	apiKey     string
	base       string
	hc         *http.Client
}

func New(merchantID, apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		merchantID: merchantID,
		apiKey:     apiKey,
		base:       baseURL,
		hc:         &http.Client{Timeout: 30 * time.Second},
	}
}

// InvoiceRequest asks for a hosted payment page.
type InvoiceRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id"`
}

// Invoice is the created payment page handle.
type Invoice struct {
	UUID    string `json:"uuid"`
	OrderID string `json:"order_id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
}

type apiResponse struct {
	State   int             `json:"state"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

// Sign computes the request/webhook signature for a JSON body.
func Sign(body []byte, apiKey string) string {
	encoded := base64.StdEncoding.EncodeToString(body)
	sum := md5.Sum([]byte(encoded + apiKey))
	return hex.EncodeToString(sum[:])
}

func (c *Client) CreateInvoice(ctx context.Context, inv InvoiceRequest) (*Invoice, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("cryptomus: encode invoice: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/payment", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cryptomus: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", c.merchantID)
	req.Header.Set("sign", Sign(body, c.apiKey))

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cryptomus: create invoice: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("cryptomus: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.State != 0 {
		return nil, fmt.Errorf("cryptomus: invoice rejected (http %d): %s", resp.StatusCode, out.Message)
	}
	var invoice Invoice
	if err := json.Unmarshal(out.Result, &invoice); err != nil {
		return nil, fmt.Errorf("cryptomus: decode invoice: %w", err)
	}
	return &invoice, nil
}

// WebhookPayment is the webhook body after signature verification.
type WebhookPayment struct {
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
	Status  string `json:"status"`
}

// VerifyWebhook checks the embedded sign field against the payload with
// that field removed, then decodes the payment. The raw body must be
// passed unmodified.
func (c *Client) VerifyWebhook(raw []byte) (*WebhookPayment, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("cryptomus: decode webhook: %w", err)
	}
	signedRaw, ok := fields["sign"]
	if !ok {
		return nil, ErrBadSignature
	}
	var got string
	if err := json.Unmarshal(signedRaw, &got); err != nil {
		return nil, ErrBadSignature
	}
	delete(fields, "sign")
	unsigned, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("cryptomus: re-encode webhook: %w", err)
	}
	if Sign(unsigned, c.apiKey) != got {
		return nil, ErrBadSignature
	}

	var payment WebhookPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("cryptomus: decode payment: %w", err)
	}
	return &payment, nil
}
