// Package audit captures the append-only trail of diagnosis lifecycle
// actions: creations, unlocks, and webhook events that were dropped. Emission
// is best-effort and must never fail the request that produced it.
package audit

import "time"

// Actions recorded in the audit trail.
const (
	ActionDiagnosisCreated  = "diagnosis_created"
	ActionDiagnosisUnlocked = "diagnosis_unlocked"
	ActionWebhookIgnored    = "webhook_ignored"
	ActionWebhookDropped    = "webhook_dropped"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Token     string    `json:"token,omitempty"`
	Action    string    `json:"action"`
	Provider  string    `json:"provider,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
