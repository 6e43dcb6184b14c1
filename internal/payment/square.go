package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	squareProductionBase = "https://connect.squareup.com"
	squareSandboxBase    = "https://connect.squareupsandbox.com"

	squareSignatureHeader = "X-Square-Signature"

	squarePaymentCompleted = "COMPLETED"
)

// Square delivers payment.updated while a payment settles and some
// integrations emit payment.completed; both are candidates, gated on the
// payment status.
var squareCompletedEvents = map[string]bool{
	"payment.updated":   true,
	"payment.completed": true,
}

// SquareProvider implements Provider against the Square payment links API.
type SquareProvider struct {
	accessToken  string
	locationID   string
	signatureKey string
	frontendURL  string
	amount       int
	currency     string
	baseURL      string
	httpClient   *http.Client
}

// SquareOption configures a SquareProvider.
type SquareOption func(*SquareProvider)

// WithSquareBaseURL points the client at a different API host, mainly tests.
func WithSquareBaseURL(baseURL string) SquareOption {
	return func(p *SquareProvider) {
		p.baseURL = baseURL
	}
}

// WithSquareHTTPClient swaps the HTTP client.
func WithSquareHTTPClient(client *http.Client) SquareOption {
	return func(p *SquareProvider) {
		p.httpClient = client
	}
}

// WithSquareSandbox targets the sandbox environment.
func WithSquareSandbox() SquareOption {
	return func(p *SquareProvider) {
		p.baseURL = squareSandboxBase
	}
}

// NewSquare constructs a Square payment provider.
func NewSquare(accessToken, locationID, signatureKey, frontendURL string, amount int, currency string, opts ...SquareOption) *SquareProvider {
	p := &SquareProvider{
		accessToken:  accessToken,
		locationID:   locationID,
		signatureKey: signatureKey,
		frontendURL:  frontendURL,
		amount:       amount,
		currency:     currency,
		baseURL:      squareProductionBase,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SquareProvider) Name() string {
	return "square"
}

func (p *SquareProvider) SignatureHeader() string {
	return squareSignatureHeader
}

// CreateSession creates a payment link. The diagnosis token travels in the
// order metadata and, as a belt-and-braces fallback, in the payment note.
func (p *SquareProvider) CreateSession(ctx context.Context, token string) (string, error) {
	reqBody := map[string]any{
		"idempotency_key": uuid.NewString(),
		"description":     productName,
		"order": map[string]any{
			"location_id": p.locationID,
			"line_items": []map[string]any{
				{
					"name":     productName,
					"quantity": "1",
					"base_price_money": map[string]any{
						"amount":   p.amount,
						"currency": strings.ToUpper(p.currency),
					},
				},
			},
			"metadata": map[string]string{
				"diagnosis_token": token,
			},
		},
		"payment_note": NoteTokenPrefix + token,
		"checkout_options": map[string]any{
			"redirect_url":   p.frontendURL + "/diagnosis/complete?token=" + token,
			"allow_tipping":  false,
			"enable_coupon":  false,
			"enable_loyalty": false,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal payment link request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/online-checkout/payment-links", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("build payment link request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create payment link: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read payment link response: %w", err)
	}

	var parsed struct {
		PaymentLink struct {
			URL string `json:"url"`
		} `json:"payment_link"`
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode payment link response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(parsed.Errors) > 0 {
			return "", fmt.Errorf("payment link error (status %d): %s", resp.StatusCode, parsed.Errors[0].Detail)
		}
		return "", fmt.Errorf("payment link error: status %d", resp.StatusCode)
	}
	if parsed.PaymentLink.URL == "" {
		return "", fmt.Errorf("payment link response missing url")
	}
	return parsed.PaymentLink.URL, nil
}

// VerifySignature computes HMAC-SHA256 over the raw payload with the webhook
// signature key and compares hex digests in constant time.
func (p *SquareProvider) VerifySignature(signature string, payload []byte) bool {
	if signature == "" || p.signatureKey == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.signatureKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseEvent extracts the normalized event from a Square webhook payload.
// Only payments with status COMPLETED count as confirmations.
func (p *SquareProvider) ParseEvent(payload []byte) (Event, error) {
	var event struct {
		EventID string `json:"event_id"`
		Type    string `json:"type"`
		Data    struct {
			Object struct {
				Payment struct {
					ID      string `json:"id"`
					Status  string `json:"status"`
					Note    string `json:"note"`
					OrderID string `json:"order_id"`
				} `json:"payment"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode square event: %w", err)
	}

	pay := event.Data.Object.Payment
	return Event{
		ID:        event.EventID,
		Type:      event.Type,
		Completed: squareCompletedEvents[event.Type] && pay.Status == squarePaymentCompleted,
		NoteToken: parseNoteToken(pay.Note),
		OrderID:   pay.OrderID,
	}, nil
}

// OrderToken retrieves the diagnosis token from the order metadata. Used as
// a fallback when the webhook payload itself yields no token.
func (p *SquareProvider) OrderToken(ctx context.Context, orderID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/orders/"+orderID, nil)
	if err != nil {
		return "", fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("retrieve order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("retrieve order: status %d", resp.StatusCode)
	}

	var parsed struct {
		Order struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"order"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	return parsed.Order.Metadata["diagnosis_token"], nil
}

// parseNoteToken applies the diagnosis-id:<token> convention to a free-text
// note. Returns "" when the note carries no token.
func parseNoteToken(note string) string {
	idx := strings.Index(note, NoteTokenPrefix)
	if idx < 0 {
		return ""
	}
	rest := note[idx+len(NoteTokenPrefix):]
	// The token runs to the next whitespace.
	if end := strings.IndexFunc(rest, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
