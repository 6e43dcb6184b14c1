// Package handler exposes the payment endpoints: checkout-session creation
// for the client and the provider-facing webhook receiver.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"akashic/internal/payment"
	dErrors "akashic/pkg/domain-errors"
	"akashic/pkg/platform/httputil"
	"akashic/pkg/requestcontext"
)

// Webhook bodies larger than this are refused before signature work.
const maxWebhookBody = 1 << 20

// Service defines the payment operations the handler needs.
type Service interface {
	CreateSession(ctx context.Context, token string) (string, error)
	ProcessWebhook(ctx context.Context, signature string, payload []byte) (payment.Outcome, error)
	SignatureHeader() string
	ProviderName() string
}

// SessionRequest is the body of POST /payment/session.
type SessionRequest struct {
	Token string `json:"token"`
}

// SessionResponse is returned by POST /payment/session.
type SessionResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// WebhookResponse acknowledges a processed delivery.
type WebhookResponse struct {
	Status string `json:"status"`
}

// Handler wires payment endpoints to the payment service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a payment handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts payment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/payment/session", h.handleCreateSession)
	r.Post("/payment/webhook", h.handleWebhook)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token is required"))
		return
	}

	url, err := h.service.CreateSession(ctx, req.Token)
	if err != nil {
		h.logger.ErrorContext(ctx, "checkout session creation failed",
			"request_id", requestID,
			"token", req.Token,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "checkout session issued",
		"request_id", requestID,
		"token", req.Token,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, SessionResponse{CheckoutURL: url})
}

// handleWebhook reads the raw body before any parsing because the signature
// covers the exact bytes on the wire.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read webhook body"))
		return
	}

	signature := r.Header.Get(h.service.SignatureHeader())
	outcome, err := h.service.ProcessWebhook(ctx, signature, payload)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodePayment) {
			h.logger.ErrorContext(ctx, "webhook processing failed",
				"request_id", requestID,
				"provider", h.service.ProviderName(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "webhook acknowledged",
		"request_id", requestID,
		"provider", h.service.ProviderName(),
		"outcome", string(outcome),
	)
	httputil.WriteJSON(w, http.StatusOK, WebhookResponse{Status: "success"})
}
