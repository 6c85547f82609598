// Package publisher emits audit events to a primary store and replicates them
// to secondary sinks (Kafka) through background workers.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	id "credreg/pkg/domain"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/platform/audit/worker"
	"credreg/pkg/platform/tx"
	"credreg/pkg/requestcontext"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is saturated.
var ErrBufferFull = errors.New("audit buffer full")

const defaultSinkBuffer = 1024

// Publisher writes events to the primary store. In sync mode (the default)
// Emit returns the store's error so callers inside a transaction fail with it.
// Sinks always receive events asynchronously and never fail Emit. Inside a
// transaction, sink delivery waits for the commit.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics

	asyncSize int
	async     chan audit.Event

	sinks      []audit.Store
	sinkInbox  []chan audit.Event
	sinkBuffer int

	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithAsyncBuffer makes primary-store writes asynchronous through a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.asyncSize = n
	}
}

// WithSink replicates every event to sink from a dedicated worker.
func WithSink(sink audit.Store) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, sink)
	}
}

// WithSinkBuffer sets the per-sink buffer size.
func WithSinkBuffer(n int) Option {
	return func(p *Publisher) {
		p.sinkBuffer = n
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, sinkBuffer: defaultSinkBuffer}
	for _, opt := range opts {
		opt(p)
	}

	if p.asyncSize > 0 {
		p.async = make(chan audit.Event, p.asyncSize)
		p.start(worker.NewWorker(store, p.async, p.workerOpts()...))
	}
	for _, sink := range p.sinks {
		inbox := make(chan audit.Event, p.sinkBuffer)
		p.sinkInbox = append(p.sinkInbox, inbox)
		p.start(worker.NewWorker(sink, inbox, p.workerOpts()...))
	}
	return p
}

func (p *Publisher) workerOpts() []worker.Option {
	opts := []worker.Option{worker.WithErrorHook(func(audit.Event, error) {
		if p.metrics != nil {
			p.metrics.IncSinkFailures()
		}
	})}
	if p.logger != nil {
		opts = append(opts, worker.WithLogger(p.logger))
	}
	return opts
}

func (p *Publisher) start(w *worker.Worker) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = w.Run(context.Background())
	}()
}

// Emit enriches the event (id, timestamp, category, request id) and writes it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.async != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		select {
		case p.async <- event:
		default:
			p.dropped(ctx, event)
			return ErrBufferFull
		}
	} else if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit persist failed",
				"action", event.Action,
				"actor", event.Actor,
				"error", err,
			)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.IncEmitted(event.Category)
	}
	if len(p.sinkInbox) > 0 {
		tx.AfterCommit(ctx, func() { p.replicate(ctx, event) })
	}
	return nil
}

func (p *Publisher) replicate(ctx context.Context, event audit.Event) {
	for _, inbox := range p.sinkInbox {
		select {
		case inbox <- event:
		default:
			p.dropped(ctx, event)
		}
	}
}

func (p *Publisher) dropped(ctx context.Context, event audit.Event) {
	if p.metrics != nil {
		p.metrics.IncDropped()
	}
	if p.logger != nil {
		p.logger.WarnContext(ctx, "audit event dropped: buffer full",
			"action", event.Action,
			"event_id", event.ID,
		)
	}
}

// List returns the events involving p when the primary store is queryable.
func (p *Publisher) List(ctx context.Context, principal id.Principal) ([]audit.Event, error) {
	reader, ok := p.store.(audit.Reader)
	if !ok {
		return nil, errors.New("audit store is not queryable")
	}
	return reader.ListByPrincipal(ctx, principal, 0)
}

// Close stops accepting async work and waits for buffered events to drain.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.async != nil {
			close(p.async)
		}
		for _, inbox := range p.sinkInbox {
			close(inbox)
		}
		p.wg.Wait()
	})
}
