package audit

import (
	"context"
	"log/slog"
	"time"
)

// Emitter is the capability services depend on. Implementations are
// fire-and-forget; a full buffer or broken sink drops the event rather than
// slowing the request path.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// NopEmitter discards events. Used when auditing is not configured.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}

// Publisher buffers events on a channel for the Worker to drain.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit enqueues the event, stamping the time if unset. Drops on a full
// buffer: audit must never block request handling.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"token", event.Token,
		)
	}
}

// Inbox exposes the channel for the Worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Worker consumes audit events from a channel and persists them.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until the context is cancelled. Persistence failures
// are logged, not returned, so one bad event cannot stop the trail.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"token", event.Token,
					"error", err,
				)
			}
		}
	}
}
