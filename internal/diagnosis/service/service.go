// Package service implements the diagnosis lifecycle manager: creation,
// retrieval with visibility rules, and idempotent unlock.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"akashic/internal/audit"
	"akashic/internal/completion"
	"akashic/internal/diagnosis"
	"akashic/internal/diagnosis/metrics"
	"akashic/internal/diagnosis/store"
	"akashic/internal/document"
	dErrors "akashic/pkg/domain-errors"
	"akashic/pkg/platform/sentinel"
)

// Service orchestrates diagnosis creation, viewing, unlocking, and document
// rendering. It is the only writer of diagnosis state.
type Service struct {
	store    store.Store
	provider completion.Provider
	renderer document.Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  audit.Emitter
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

func WithRenderer(r document.Renderer) Option {
	return func(s *Service) {
		s.renderer = r
	}
}

// New constructs the lifecycle manager with its dependencies.
func New(st store.Store, provider completion.Provider, logger *slog.Logger, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("diagnosis store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("completion provider is required")
	}

	svc := &Service{
		store:    st,
		provider: provider,
		logger:   logger,
		auditor:  audit.NopEmitter{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateFree generates a free-tier diagnosis. The record is stored unlocked;
// free diagnoses are never paywalled.
func (s *Service) CreateFree(ctx context.Context, name, birthDate string) (diagnosis.Projection, error) {
	return s.create(ctx, diagnosis.Record{
		Name:      name,
		BirthDate: birthDate,
		Tier:      diagnosis.TierFree,
	}, freePrompt(name, birthDate), freeMaxTokens)
}

// CreateDetailed generates a detailed diagnosis. The record is stored locked;
// only a payment confirmation can unlock it.
func (s *Service) CreateDetailed(ctx context.Context, name, birthDate string, categories []string, freeText string) (diagnosis.Projection, error) {
	return s.create(ctx, diagnosis.Record{
		Name:       name,
		BirthDate:  birthDate,
		Tier:       diagnosis.TierDetailed,
		Categories: categories,
		FreeText:   freeText,
	}, detailedPrompt(name, birthDate, categories, freeText), detailedMaxTokens)
}

func (s *Service) create(ctx context.Context, record diagnosis.Record, prompt string, maxTokens int) (diagnosis.Projection, error) {
	start := time.Now()

	result, err := s.provider.Complete(ctx, systemPrompt, prompt, maxTokens)
	if err != nil {
		// Nothing is persisted on provider failure; the client retries the
		// whole creation, which mints a fresh token.
		return diagnosis.Projection{}, dErrors.Wrap(err, dErrors.CodeProvider, "diagnosis generation failed")
	}

	now := time.Now()
	record.Token = uuid.NewString()
	record.Result = result
	// The lock decision is made here and nowhere else: free means unlocked.
	record.Unlocked = record.Tier == diagnosis.TierFree
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.store.Put(ctx, record); err != nil {
		return diagnosis.Projection{}, translateStoreErr(err, "failed to store diagnosis")
	}

	if s.metrics != nil {
		s.metrics.ObserveCreation(string(record.Tier), start)
	}
	s.auditor.Emit(ctx, audit.Event{
		Token:  record.Token,
		Action: audit.ActionDiagnosisCreated,
		Detail: string(record.Tier),
	})

	return record.Project(), nil
}

// View is the single enforcement point of the paywall: every read of
// diagnosis content goes through here. Locked detailed records come back as
// a redacted projection, never as an error.
func (s *Service) View(ctx context.Context, token string) (diagnosis.Projection, error) {
	record, err := s.store.Get(ctx, token)
	if err != nil {
		return diagnosis.Projection{}, translateStoreErr(err, "failed to load diagnosis")
	}

	p := record.Project()
	if s.metrics != nil {
		visibility := "full"
		if p.Locked {
			visibility = "redacted"
		}
		s.metrics.Views.WithLabelValues(visibility).Inc()
	}
	return p, nil
}

// Unlock flips the record's paywall exactly once. Calling it again for the
// same token succeeds silently; the transition is monotonic and commutes
// with itself, so duplicate webhook deliveries converge on the same state.
func (s *Service) Unlock(ctx context.Context, token string) error {
	changed, err := s.store.SetUnlocked(ctx, token)
	if err != nil {
		return translateStoreErr(err, "failed to unlock diagnosis")
	}
	if !changed {
		return nil
	}

	if s.metrics != nil {
		s.metrics.Unlocked.Inc()
	}
	s.auditor.Emit(ctx, audit.Event{
		Token:  token,
		Action: audit.ActionDiagnosisUnlocked,
	})
	s.logger.InfoContext(ctx, "diagnosis unlocked", "token", token)
	return nil
}

// Document renders the diagnosis as a PDF. Locked records are refused with a
// locked error so the handler can answer 403 instead of serving content the
// paywall still covers.
func (s *Service) Document(ctx context.Context, token string) ([]byte, error) {
	if s.renderer == nil {
		return nil, dErrors.New(dErrors.CodeRender, "document rendering is not configured")
	}

	record, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load diagnosis")
	}
	if record.Detailed() && !record.Unlocked {
		return nil, dErrors.New(dErrors.CodeLocked, "diagnosis is locked")
	}

	data, err := s.renderer.Render(ctx, record.Name, record.BirthDate, record.Result)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRender, "document generation failed")
	}
	return data, nil
}

// translateStoreErr maps store sentinels to domain errors exactly once, so
// handlers and the webhook pipeline can branch on codes.
func translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "diagnosis not found")
	case errors.Is(err, sentinel.ErrPermission):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "storage access denied")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage temporarily unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
