// Package retry provides the bounded exponential retry used for upstream
// registry calls: at most a fixed number of attempts, 1s * 2^(n-1)
// backoff capped at a maximum, with optional jitter.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultMaxAttempts = 3
	defaultMaxBackoff  = 30 * time.Second
)

type Options struct {
	MaxAttempts int
	MaxBackoff  time.Duration
	MaxJitter   time.Duration

	// Sleep is swapped in tests; nil means time-based sleeping that
	// honors context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	rand  *rand.Rand
}

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	if o.rand == nil && o.MaxJitter > 0 {
		o.rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	return o
}

// Permanent wraps an error that must not be retried.
type Permanent struct{ Err error }

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

// Do runs fn up to MaxAttempts times. The last error is returned when the
// budget is exhausted; context cancellation stops immediately.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.normalized()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p, ok := err.(Permanent); ok {
			return p.Err
		}
		lastErr = err
		if attempt == opts.MaxAttempts {
			break
		}
		wait := Backoff(attempt, opts.MaxBackoff) + jitter(opts.rand, opts.MaxJitter)
		if err := opts.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

// Backoff returns 1s * 2^(attempts-1), capped at maxBackoff.
func Backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	seconds := math.Pow(2, float64(attempts-1))
	d := time.Duration(seconds * float64(time.Second))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 || r == nil {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
