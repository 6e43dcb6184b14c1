package store

import (
	"context"

	"akashic/internal/diagnosis"
)

// Store persists diagnosis records. Implementations return sentinel errors
// (pkg/platform/sentinel) so the service layer owns domain-error translation:
// ErrNotFound for unknown tokens, ErrPermission for credential failures,
// ErrUnavailable for transient outages.
//
// Put persists the whole record or nothing. SetUnlocked is idempotent:
// setting true when already true succeeds silently and reports changed=false,
// so callers can count and audit only the first transition.
type Store interface {
	Put(ctx context.Context, record diagnosis.Record) error
	Get(ctx context.Context, token string) (diagnosis.Record, error)
	SetUnlocked(ctx context.Context, token string) (changed bool, err error)
}
