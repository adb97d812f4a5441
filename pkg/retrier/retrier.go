// Package retrier retries fallible calls with capped exponential backoff.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 5
	defaultJitter          = 0.1
)

// Retrier re-runs a call until it succeeds, the error is not retryable,
// retries are exhausted or the context is done.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          float64
	retryable       func(error) bool
	onRetry         func(attempt int, err error)
	random          func() float64
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the delay before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.initialInterval = d }
}

// WithMaxInterval caps the delay between retries.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxInterval = d }
}

// WithMultiplier sets the growth factor of the delay.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) { r.multiplier = m }
}

// WithMaxRetries sets how many times a failed call is repeated.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithJitter randomizes each delay by ±j of its value, j in [0, 1].
func WithJitter(j float64) Option {
	return func(r *Retrier) { r.jitter = j }
}

// WithRetryIf limits retries to errors accepted by fn. Other errors are returned at once.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryable = fn }
}

// WithOnRetry registers a hook called before every retry with the error that caused it.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New creates a Retrier with defaults overridden by opts.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		jitter:          defaultJitter,
		retryable:       func(error) bool { return true },
		onRetry:         func(int, error) {},
		random:          rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Delay returns the jitter-free wait before retry number attempt (1-based).
func (r *Retrier) Delay(attempt int) time.Duration {
	d := float64(r.initialInterval)
	for i := 1; i < attempt; i++ {
		d *= r.multiplier
		if d >= float64(r.maxInterval) {
			return r.maxInterval
		}
	}
	return time.Duration(d)
}

func (r *Retrier) jittered(d time.Duration) time.Duration {
	if r.jitter <= 0 {
		return d
	}
	offset := (r.random()*2 - 1) * r.jitter * float64(d)
	if jittered := time.Duration(float64(d) + offset); jittered > 0 {
		return jittered
	}
	return 0
}

// Do calls fn until it succeeds. It returns ctx.Err() once ctx is done, the first
// non-retryable error, or the last error after maxRetries retries.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	for attempt := 1; err != nil; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !r.retryable(err) || attempt > r.maxRetries {
			return err
		}

		r.onRetry(attempt, err)

		timer := time.NewTimer(r.jittered(r.Delay(attempt)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = fn(ctx)
	}
	return nil
}

// DoWithData is Do for calls that produce a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = fn(ctx)
		return callErr
	})
	return result, err
}
