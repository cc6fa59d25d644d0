// Package retry waits out transient failures. The binaries use a Retrier to
// wait for PostgreSQL and Redis at startup, and the event router borrows
// Backoff for its per-handler retries. The engine itself never retries a
// cascade.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Error marks
// ─────────────────────────────────────────────────────────────────────────────

// markedError tags an error as worth another attempt or as final.
type markedError struct {
	err   error
	final bool
}

func (m *markedError) Error() string { return m.err.Error() }
func (m *markedError) Unwrap() error { return m.err }

func mark(err error, final bool) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, final: final}
}

func marked(err error) (*markedError, bool) {
	var m *markedError
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}

// Retryable marks err as transient. Under the default classifier only
// marked errors are retried.
func Retryable(err error) error { return mark(err, false) }

// Permanent marks err as final; no classifier can override it.
func Permanent(err error) error { return mark(err, true) }

// IsRetryable reports whether err carries a Retryable mark.
func IsRetryable(err error) bool {
	m, ok := marked(err)
	return ok && !m.final
}

// IsPermanent reports whether err carries a Permanent mark.
func IsPermanent(err error) bool {
	m, ok := marked(err)
	return ok && m.final
}

// strip removes the outermost mark so callers see their own error.
func strip(err error) error {
	if m, ok := err.(*markedError); ok {
		return m.err
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Backoff
// ─────────────────────────────────────────────────────────────────────────────

// Backoff computes exponential delays. Attempt 1 waits Initial, each later
// attempt multiplies by Factor, and the result never exceeds Max when Max is
// set. Jitter spreads the delay by up to that fraction either way.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Initial) * math.Pow(factor, float64(attempt-1))
	if b.Max > 0 {
		d = math.Min(d, float64(b.Max))
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// ─────────────────────────────────────────────────────────────────────────────
// Retrier
// ─────────────────────────────────────────────────────────────────────────────

// Retrier runs an operation until it succeeds, fails for good, or runs out
// of attempts.
type Retrier struct {
	attempts int
	backoff  Backoff
	classify func(error) bool
	notify   func(attempt int, err error, delay time.Duration)
}

// Option adjusts a Retrier.
type Option func(*Retrier)

// WithMaxAttempts caps the number of calls, the first one included.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithInitialDelay sets the wait before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.backoff.Initial = d
		}
	}
}

// WithMaxDelay caps any single wait.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.backoff.Max = d
		}
	}
}

// WithMultiplier sets the growth factor between waits.
func WithMultiplier(f float64) Option {
	return func(r *Retrier) {
		if f >= 1 {
			r.backoff.Factor = f
		}
	}
}

// WithJitter sets the jitter fraction, between 0 and 1.
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		if j >= 0 && j <= 1 {
			r.backoff.Jitter = j
		}
	}
}

// WithRetryIf replaces the default classifier, which accepts only errors
// marked Retryable.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.classify = fn }
}

// WithOnRetry registers a hook that runs before every wait.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) { r.notify = fn }
}

// New builds a Retrier: three attempts, 100ms doubling to at most 30s,
// with 10% jitter.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		attempts: 3,
		backoff: Backoff{
			Initial: 100 * time.Millisecond,
			Max:     30 * time.Second,
			Factor:  2,
			Jitter:  0.1,
		},
		classify: IsRetryable,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.classify == nil {
		r.classify = IsRetryable
	}
	return r
}

// Do calls op until it returns nil or a non-retryable error, or the
// attempts run out. The error returned has any retry mark removed. A
// cancelled ctx ends the loop with the last failure seen, or ctx.Err() if
// op never ran.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			if last != nil {
				return strip(last)
			}
			return ctx.Err()
		}

		err := op(ctx)
		switch {
		case err == nil:
			return nil
		case IsPermanent(err), !r.classify(err), attempt >= r.attempts:
			return strip(err)
		}
		last = err

		delay := r.backoff.Delay(attempt)
		if r.notify != nil {
			r.notify(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return strip(last)
		case <-timer.C:
		}
	}
}

// Do runs op under a Retrier built from opts.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoWithData is Do for operations that also produce a value.
func DoWithData[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := New(opts...).Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

// StartupRetrier waits for a backing service that may still be booting next
// to the process, as in a compose deployment. Every error except a
// Permanent one is retried.
func StartupRetrier(attempts int, onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(500*time.Millisecond),
		WithMaxDelay(10*time.Second),
		WithJitter(0.2),
		WithRetryIf(func(error) bool { return true }),
		WithOnRetry(onRetry),
	)
}
