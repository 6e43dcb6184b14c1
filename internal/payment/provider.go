// Package payment normalizes provider-specific checkout and webhook flows
// into a single "payment confirmed for token X" event.
package payment

import "context"

// Event is the normalized view of a provider webhook delivery.
type Event struct {
	// ID identifies the delivery for dedupe. May be empty for providers
	// that do not send one; the unlock is idempotent either way.
	ID string
	// Type is the provider's raw event type, kept for logs.
	Type string
	// Completed is true only for events confirming a captured payment.
	// Everything else is acknowledged and ignored.
	Completed bool
	// MetadataToken is the diagnosis token recovered from payment metadata
	// attached at checkout-session creation.
	MetadataToken string
	// NoteToken is the fallback token recovered from the free-text note
	// using the diagnosis-id:<token> convention.
	NoteToken string
	// OrderID allows a secondary metadata lookup for providers that only
	// reference the order from the webhook payload.
	OrderID string
}

// Provider is the per-payment-provider capability: checkout-session
// creation, webhook authenticity, and payload normalization. One variant per
// provider, selected by configuration.
type Provider interface {
	Name() string
	// CreateSession creates a checkout session carrying the diagnosis token
	// in the payment metadata and returns the URL the client is sent to.
	CreateSession(ctx context.Context, token string) (string, error)
	// SignatureHeader names the HTTP header carrying the webhook signature.
	SignatureHeader() string
	// VerifySignature checks the provider-supplied signature against a keyed
	// hash of the raw payload bytes, in constant time.
	VerifySignature(signature string, payload []byte) bool
	// ParseEvent normalizes a verified payload. It performs no I/O.
	ParseEvent(payload []byte) (Event, error)
}

// OrderTokenLookup is implemented by providers whose webhook payloads only
// carry an order reference; the service falls back to it when neither
// metadata nor note yields a token.
type OrderTokenLookup interface {
	OrderToken(ctx context.Context, orderID string) (string, error)
}

// NoteTokenPrefix is the fixed delimiter convention for tokens embedded in
// free-text payment notes.
const NoteTokenPrefix = "diagnosis-id:"
