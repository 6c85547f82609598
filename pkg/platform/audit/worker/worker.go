package worker

import (
	"context"
	"log/slog"

	audit "credreg/pkg/platform/audit"
)

// Worker drains an event channel into a sink. A failed append is logged and
// the worker moves on; sinks fed by a worker are best-effort replicas of the
// primary audit store.
type Worker struct {
	sink    audit.Store
	inbox   <-chan audit.Event
	logger  *slog.Logger
	onError func(audit.Event, error)
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithErrorHook is called for every failed append (metrics, tests).
func WithErrorHook(fn func(audit.Event, error)) Option {
	return func(w *Worker) {
		w.onError = fn
	}
}

func NewWorker(sink audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{sink: sink, inbox: inbox}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run returns nil once the inbox is closed and drained, or ctx.Err() on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.sink.Append(ctx, event); err != nil {
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "audit sink append failed",
						"action", event.Action,
						"event_id", event.ID,
						"error", err,
					)
				}
				if w.onError != nil {
					w.onError(event, err)
				}
			}
		}
	}
}
