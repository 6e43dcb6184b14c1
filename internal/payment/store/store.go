// Package store tracks processed webhook event IDs so redeliveries are
// acknowledged without side effects.
package store

import (
	"context"
	"time"
)

// EventStore records which provider event IDs have already been processed.
// MarkProcessed reports whether the ID was newly recorded; false means a
// duplicate delivery. Entries expire after the retention window since
// providers stop retrying long before then.
type EventStore interface {
	MarkProcessed(ctx context.Context, eventID string, retention time.Duration) (bool, error)
}
