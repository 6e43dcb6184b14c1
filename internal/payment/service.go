package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"akashic/internal/audit"
	"akashic/internal/diagnosis"
	"akashic/internal/payment/metrics"
	"akashic/internal/payment/store"
	dErrors "akashic/pkg/domain-errors"
)

// Outcome classifies what the webhook pipeline did with a delivery. The
// handler acknowledges every outcome with 200 except signature failures.
type Outcome string

const (
	OutcomeUnlocked  Outcome = "unlocked"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDropped   Outcome = "dropped"
	OutcomeDuplicate Outcome = "duplicate"
)

const (
	// Providers retry for days at most; a week of dedupe markers covers that.
	eventRetention = 7 * 24 * time.Hour

	// A webhook can race the store write of a just-created diagnosis when the
	// backend is eventually consistent, so not-found is retried briefly before
	// the delivery is acknowledged and left to the provider's retry schedule.
	unlockRetries    = 3
	unlockRetryDelay = 200 * time.Millisecond
)

// Diagnoses is the slice of the diagnosis lifecycle the payment flow needs:
// an existence check before checkout and the idempotent unlock.
type Diagnoses interface {
	View(ctx context.Context, token string) (diagnosis.Projection, error)
	Unlock(ctx context.Context, token string) error
}

// Service drives checkout-session creation and webhook processing for one
// configured provider.
type Service struct {
	provider   Provider
	diagnoses  Diagnoses
	events     store.EventStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
	auditor    audit.Emitter
	skipVerify bool
	sleep      func(context.Context, time.Duration) error
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

// WithSkipVerify disables webhook signature verification. Construction-time
// config refuses this outside development.
func WithSkipVerify() Option {
	return func(s *Service) {
		s.skipVerify = true
	}
}

func withSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Service) {
		s.sleep = sleep
	}
}

// New constructs the payment service with its dependencies.
func New(provider Provider, diagnoses Diagnoses, events store.EventStore, logger *slog.Logger, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("payment provider is required")
	}
	if diagnoses == nil {
		return nil, fmt.Errorf("diagnosis service is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}

	svc := &Service{
		provider:  provider,
		diagnoses: diagnoses,
		events:    events,
		logger:    logger,
		auditor:   audit.NopEmitter{},
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Provider reports the configured provider's name, for logs and the handler.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// SignatureHeader names the request header the handler should read the
// webhook signature from.
func (s *Service) SignatureHeader() string {
	return s.provider.SignatureHeader()
}

// CreateSession creates a checkout session for the diagnosis token and
// returns the URL the client redirects to. Unknown tokens are refused before
// any provider call so no orphaned sessions get created.
func (s *Service) CreateSession(ctx context.Context, token string) (string, error) {
	if _, err := s.diagnoses.View(ctx, token); err != nil {
		return "", err
	}

	url, err := s.provider.CreateSession(ctx, token)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodePayment, "failed to create checkout session")
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "checkout session created",
		"provider", s.provider.Name(),
		"token", token,
	)
	return url, nil
}

// ProcessWebhook runs one delivery through the pipeline: verify, parse,
// filter, dedupe, resolve the token, unlock. Everything after a valid
// signature is acknowledged, including payloads this service cannot act on;
// only a signature failure or a store outage surfaces as an error.
func (s *Service) ProcessWebhook(ctx context.Context, signature string, payload []byte) (Outcome, error) {
	provider := s.provider.Name()

	if !s.skipVerify && !s.provider.VerifySignature(signature, payload) {
		if s.metrics != nil {
			s.metrics.ObserveWebhook(provider, metrics.OutcomeInvalidSignature)
		}
		s.logger.WarnContext(ctx, "webhook signature verification failed", "provider", provider)
		return "", dErrors.New(dErrors.CodePayment, "invalid webhook signature")
	}

	event, err := s.provider.ParseEvent(payload)
	if err != nil {
		// Authenticated but malformed: the provider will resend the same
		// bytes forever, so acknowledge and drop rather than retry-loop.
		if s.metrics != nil {
			s.metrics.ObserveWebhook(provider, metrics.OutcomeDropped)
		}
		s.logger.WarnContext(ctx, "webhook payload unparseable", "provider", provider, "error", err)
		s.auditor.Emit(ctx, audit.Event{
			Action:   audit.ActionWebhookDropped,
			Provider: provider,
			Detail:   "unparseable payload",
		})
		return OutcomeDropped, nil
	}

	if !event.Completed {
		if s.metrics != nil {
			s.metrics.ObserveWebhook(provider, metrics.OutcomeIgnored)
		}
		s.logger.DebugContext(ctx, "webhook event ignored",
			"provider", provider,
			"event_type", event.Type,
		)
		return OutcomeIgnored, nil
	}

	token := s.resolveToken(ctx, event)
	if token == "" {
		if s.metrics != nil {
			s.metrics.ObserveWebhook(provider, metrics.OutcomeDropped)
		}
		s.logger.WarnContext(ctx, "completed payment carries no diagnosis token",
			"provider", provider,
			"event_id", event.ID,
		)
		s.auditor.Emit(ctx, audit.Event{
			Action:   audit.ActionWebhookDropped,
			Provider: provider,
			Detail:   "no diagnosis token in event " + event.ID,
		})
		return OutcomeDropped, nil
	}

	if err := s.unlockWithRetry(ctx, token); err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			// Still absent after retrying: acknowledge so the provider does
			// not hammer us, and leave a trace.
			if s.metrics != nil {
				s.metrics.ObserveWebhook(provider, metrics.OutcomeDropped)
			}
			s.logger.WarnContext(ctx, "paid diagnosis not found",
				"provider", provider,
				"token", token,
			)
			s.auditor.Emit(ctx, audit.Event{
				Token:    token,
				Action:   audit.ActionWebhookDropped,
				Provider: provider,
				Detail:   "diagnosis not found",
			})
			return OutcomeDropped, nil
		}
		if s.metrics != nil {
			s.metrics.ObserveWebhook(provider, metrics.OutcomeError)
		}
		return "", err
	}

	// The dedupe marker is written only after the unlock succeeds: if the
	// store was down mid-unlock the provider's retry must not be swallowed,
	// and the unlock itself is idempotent so re-running it is harmless.
	if event.ID != "" {
		fresh, err := s.events.MarkProcessed(ctx, event.ID, eventRetention)
		if err != nil {
			// The unlock already happened; a broken dedupe store only costs
			// duplicate-delivery bookkeeping.
			s.logger.WarnContext(ctx, "webhook dedupe store unavailable",
				"provider", provider,
				"event_id", event.ID,
				"error", err,
			)
		} else if !fresh {
			if s.metrics != nil {
				s.metrics.ObserveWebhook(provider, metrics.OutcomeDuplicate)
			}
			s.logger.InfoContext(ctx, "duplicate webhook delivery",
				"provider", provider,
				"event_id", event.ID,
			)
			return OutcomeDuplicate, nil
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveWebhook(provider, metrics.OutcomeUnlocked)
	}
	s.logger.InfoContext(ctx, "payment confirmed",
		"provider", provider,
		"event_id", event.ID,
		"token", token,
	)
	return OutcomeUnlocked, nil
}

// resolveToken applies the token recovery policy: session metadata first,
// then the payment-note convention, then an order-metadata lookup for
// providers that support one.
func (s *Service) resolveToken(ctx context.Context, event Event) string {
	if event.MetadataToken != "" {
		if event.NoteToken != "" && event.NoteToken != event.MetadataToken {
			s.logger.WarnContext(ctx, "metadata and note tokens disagree, using metadata",
				"provider", s.provider.Name(),
				"metadata_token", event.MetadataToken,
				"note_token", event.NoteToken,
			)
		}
		return event.MetadataToken
	}
	if event.NoteToken != "" {
		return event.NoteToken
	}
	if event.OrderID != "" {
		if lookup, ok := s.provider.(OrderTokenLookup); ok {
			token, err := lookup.OrderToken(ctx, event.OrderID)
			if err != nil {
				s.logger.WarnContext(ctx, "order metadata lookup failed",
					"provider", s.provider.Name(),
					"order_id", event.OrderID,
					"error", err,
				)
				return ""
			}
			return token
		}
	}
	return ""
}

func (s *Service) unlockWithRetry(ctx context.Context, token string) error {
	var err error
	for attempt := 0; attempt < unlockRetries; attempt++ {
		if attempt > 0 {
			if serr := s.sleep(ctx, unlockRetryDelay); serr != nil {
				return dErrors.Wrap(serr, dErrors.CodeUnavailable, "webhook processing cancelled")
			}
		}
		err = s.diagnoses.Unlock(ctx, token)
		if err == nil || !dErrors.Is(err, dErrors.CodeNotFound) {
			return err
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
