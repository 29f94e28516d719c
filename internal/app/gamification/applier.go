package gamification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/vibeloop/vibeloop/internal/domain"
	"github.com/vibeloop/vibeloop/internal/infra/metrics"
)

// ApplierOptions bound the retry loop around one ledger transaction.
type ApplierOptions struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultApplierOptions returns 5 attempts with 50ms..2s exponential backoff.
func DefaultApplierOptions() ApplierOptions {
	return ApplierOptions{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Applier runs read-modify-write transactions against a LedgerStore and
// replays the whole transaction on transient conflicts. The update function
// is re-run from a fresh read on every attempt.
type Applier struct {
	store domain.LedgerStore
	opts  ApplierOptions
}

// NewApplier creates an applier. Zero options fall back to the defaults.
func NewApplier(store domain.LedgerStore, opts ApplierOptions) *Applier {
	def := DefaultApplierOptions()
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = def.InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = max(def.MaxBackoff, opts.InitialBackoff)
	}
	return &Applier{store: store, opts: opts}
}

// Apply commits fn for userID. Errors returned by fn are never retried.
// When every attempt hits a transient error the result is a
// PersistentStoreError wrapping ErrRetriesExhausted.
func (a *Applier) Apply(ctx context.Context, op, userID string, fn domain.UpdateFunc) error {
	start := time.Now()
	defer func() {
		metrics.LedgerTxDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.opts.InitialBackoff
	b.MaxInterval = a.opts.MaxBackoff

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := a.store.UpdateLedger(ctx, userID, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if domain.IsTransient(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(a.opts.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.LedgerTxRetries.Inc()
			log.Printf("[applier] %s for %s conflicted, retrying in %s: %v", op, userID, wait, err)
		}),
	)
	if err != nil && domain.IsTransient(err) {
		return &domain.PersistentStoreError{
			Op:  op,
			Err: fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, attempts, err),
		}
	}
	return err
}
