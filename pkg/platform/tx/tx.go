package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context so stores called inside
// RunInTx join it instead of using their own connection.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Active reports whether ctx already carries a transaction.
func Active(ctx context.Context) bool {
	_, ok := From(ctx)
	return ok
}

// Runner executes fn as one atomic unit. *database.DB and MemoryRunner
// satisfy it.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type memKey struct{}

// DefaultMemoryTimeout bounds how long a memory transaction may wait for
// and hold the write lock.
const DefaultMemoryTimeout = 5 * time.Second

// MemoryRunner serializes writers of the in-memory backend. Nested calls
// join the outer transaction.
type MemoryRunner struct {
	sem     chan struct{}
	timeout time.Duration
}

func NewMemoryRunner(timeout time.Duration) *MemoryRunner {
	if timeout <= 0 {
		timeout = DefaultMemoryTimeout
	}
	return &MemoryRunner{sem: make(chan struct{}, 1), timeout: timeout}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memKey{}) != nil {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire write lock: %w", ctx.Err())
	}
	defer func() { <-r.sem }()

	ctx, flush := WithCommitHooks(context.WithValue(ctx, memKey{}, struct{}{}))
	if err := fn(ctx); err != nil {
		return err
	}
	flush()
	return nil
}

type hooksKey struct{}

type commitHooks struct {
	mu   sync.Mutex
	fns  []func()
	done bool
}

// WithCommitHooks returns a ctx that collects AfterCommit callbacks and the
// flush that runs them. Runners call flush only after a successful commit.
func WithCommitHooks(ctx context.Context) (context.Context, func()) {
	h := &commitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h.flush
}

// AfterCommit defers fn until the transaction carried by ctx commits. It is
// dropped if the transaction rolls back. Outside a transaction fn runs now.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(hooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		fn()
		return
	}
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *commitHooks) flush() {
	h.mu.Lock()
	fns := h.fns
	h.fns, h.done = nil, true
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
