package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	stripeAPIBase         = "https://api.stripe.com/v1"
	stripeSignatureHeader = "Stripe-Signature"
	// Completed checkout sessions are the only event that unlocks.
	stripeCompletedEvent = "checkout.session.completed"
	// Signed timestamps older than this are rejected to blunt replay.
	stripeSignatureTolerance = 5 * time.Minute

	productName        = "アカシックAI詳細診断"
	productDescription = "詳細な運勢診断結果の閲覧"
)

// StripeProvider implements Provider against the Stripe Checkout API.
type StripeProvider struct {
	secretKey     string
	webhookSecret string
	frontendURL   string
	amount        int
	currency      string
	baseURL       string
	httpClient    *http.Client
	now           func() time.Time
}

// StripeOption configures a StripeProvider.
type StripeOption func(*StripeProvider)

// WithStripeBaseURL points the client at a different API host, mainly tests.
func WithStripeBaseURL(baseURL string) StripeOption {
	return func(p *StripeProvider) {
		p.baseURL = baseURL
	}
}

// WithStripeHTTPClient swaps the HTTP client.
func WithStripeHTTPClient(client *http.Client) StripeOption {
	return func(p *StripeProvider) {
		p.httpClient = client
	}
}

// WithStripeClock overrides the clock used for signature tolerance checks.
func WithStripeClock(now func() time.Time) StripeOption {
	return func(p *StripeProvider) {
		p.now = now
	}
}

// NewStripe constructs a Stripe payment provider.
func NewStripe(secretKey, webhookSecret, frontendURL string, amount int, currency string, opts ...StripeOption) *StripeProvider {
	p := &StripeProvider{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		frontendURL:   frontendURL,
		amount:        amount,
		currency:      currency,
		baseURL:       stripeAPIBase,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *StripeProvider) Name() string {
	return "stripe"
}

func (p *StripeProvider) SignatureHeader() string {
	return stripeSignatureHeader
}

// CreateSession creates a Checkout Session with the diagnosis token in the
// session metadata so the webhook can recover it without extra lookups.
func (p *StripeProvider) CreateSession(ctx context.Context, token string) (string, error) {
	form := url.Values{}
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", p.currency)
	form.Set("line_items[0][price_data][product_data][name]", productName)
	form.Set("line_items[0][price_data][product_data][description]", productDescription)
	form.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(p.amount))
	form.Set("line_items[0][quantity]", "1")
	form.Set("mode", "payment")
	form.Set("success_url", p.frontendURL+"/diagnosis/complete?token="+url.QueryEscape(token))
	form.Set("cancel_url", p.frontendURL+"/diagnosis/detail")
	form.Set("metadata[diagnosis_token]", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build checkout session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read checkout session response: %w", err)
	}

	var parsed struct {
		URL   string `json:"url"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode checkout session response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("checkout session error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("checkout session error: status %d", resp.StatusCode)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("checkout session response missing url")
	}
	return parsed.URL, nil
}

// VerifySignature validates the t=...,v1=... signature header: HMAC-SHA256
// over "<timestamp>.<payload>" with the webhook secret, compared in constant
// time, with a bounded timestamp tolerance.
func (p *StripeProvider) VerifySignature(signature string, payload []byte) bool {
	if signature == "" || p.webhookSecret == "" {
		return false
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := p.now().Sub(time.Unix(ts, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return true
		}
	}
	return false
}

// ParseEvent extracts the normalized event from a Stripe event object.
func (p *StripeProvider) ParseEvent(payload []byte) (Event, error) {
	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode stripe event: %w", err)
	}

	return Event{
		ID:            event.ID,
		Type:          event.Type,
		Completed:     event.Type == stripeCompletedEvent,
		MetadataToken: event.Data.Object.Metadata["diagnosis_token"],
	}, nil
}
