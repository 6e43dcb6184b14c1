package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stripeTestSecret = "whsec_test"

func stripeSign(secret string, ts time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestStripe(opts ...StripeOption) *StripeProvider {
	return NewStripe("sk_test", stripeTestSecret, "https://front.example", 1000, "jpy", opts...)
}

func TestStripeVerifySignature(t *testing.T) {
	now := time.Now()
	p := newTestStripe(WithStripeClock(func() time.Time { return now }))
	payload := []byte(`{"id":"evt_1"}`)

	t.Run("accepts a valid signature", func(t *testing.T) {
		assert.True(t, p.VerifySignature(stripeSign(stripeTestSecret, now, payload), payload))
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		sig := stripeSign(stripeTestSecret, now, payload)
		assert.False(t, p.VerifySignature(sig, []byte(`{"id":"evt_2"}`)))
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		sig := stripeSign("whsec_other", now, payload)
		assert.False(t, p.VerifySignature(sig, payload))
	})

	t.Run("rejects a stale timestamp", func(t *testing.T) {
		sig := stripeSign(stripeTestSecret, now.Add(-10*time.Minute), payload)
		assert.False(t, p.VerifySignature(sig, payload))
	})

	t.Run("rejects an empty or malformed header", func(t *testing.T) {
		assert.False(t, p.VerifySignature("", payload))
		assert.False(t, p.VerifySignature("garbage", payload))
		assert.False(t, p.VerifySignature("t=notanumber,v1=abc", payload))
	})

	t.Run("accepts any matching v1 candidate", func(t *testing.T) {
		sig := stripeSign(stripeTestSecret, now, payload)
		assert.True(t, p.VerifySignature(sig+",v1=deadbeef", payload))
	})
}

func TestStripeParseEvent(t *testing.T) {
	p := newTestStripe()

	t.Run("completed checkout session carries the token", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_1",
			"type": "checkout.session.completed",
			"data": {"object": {"metadata": {"diagnosis_token": "tok-123"}}}
		}`)
		event, err := p.ParseEvent(payload)
		require.NoError(t, err)
		assert.True(t, event.Completed)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, "tok-123", event.MetadataToken)
	})

	t.Run("other event types are not completions", func(t *testing.T) {
		payload := []byte(`{"id":"evt_2","type":"payment_intent.created","data":{"object":{}}}`)
		event, err := p.ParseEvent(payload)
		require.NoError(t, err)
		assert.False(t, event.Completed)
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		_, err := p.ParseEvent([]byte("{broken"))
		assert.Error(t, err)
	})
}

func TestStripeCreateSession(t *testing.T) {
	var captured url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://checkout.stripe.com/pay/cs_123"})
	}))
	defer server.Close()

	p := newTestStripe(WithStripeBaseURL(server.URL))
	checkoutURL, err := p.CreateSession(t.Context(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_123", checkoutURL)

	assert.Equal(t, "tok-123", captured.Get("metadata[diagnosis_token]"))
	assert.Equal(t, "1000", captured.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "jpy", captured.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "payment", captured.Get("mode"))
	assert.Equal(t, "https://front.example/diagnosis/complete?token=tok-123", captured.Get("success_url"))
	assert.Equal(t, "https://front.example/diagnosis/detail", captured.Get("cancel_url"))
}

func TestStripeCreateSessionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "card declined"}})
	}))
	defer server.Close()

	p := newTestStripe(WithStripeBaseURL(server.URL))
	_, err := p.CreateSession(t.Context(), "tok-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card declined")
}
