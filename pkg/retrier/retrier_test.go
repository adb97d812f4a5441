package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func failTimes(n int, attempts *int) func(context.Context) error {
	return func(context.Context) error {
		*attempts++
		if *attempts <= n {
			return errFlaky
		}
		return nil
	}
}

func TestRetrier_Do(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failures     int
		wantErr      error
		wantAttempts int
	}{
		{name: "first attempt succeeds", maxRetries: 3, failures: 0, wantAttempts: 1},
		{name: "succeeds after retries", maxRetries: 3, failures: 2, wantAttempts: 3},
		{name: "retries exhausted", maxRetries: 2, failures: 10, wantErr: errFlaky, wantAttempts: 3},
		{name: "no retries", maxRetries: 0, failures: 1, wantErr: errFlaky, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(WithMaxRetries(tt.maxRetries), WithInitialInterval(time.Millisecond))
			attempts := 0

			err := r.Do(context.Background(), failTimes(tt.failures, &attempts))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestRetrier_ContextCancellation(t *testing.T) {
	t.Run("cancelled during call", func(t *testing.T) {
		r := New(WithMaxRetries(5), WithInitialInterval(time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := r.Do(ctx, func(context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errFlaky
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		r := New(WithMaxRetries(5), WithInitialInterval(time.Hour))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		attempts := 0
		start := time.Now()
		err := r.Do(ctx, failTimes(10, &attempts))

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, attempts)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestRetrier_Delay(t *testing.T) {
	r := New(WithInitialInterval(100*time.Millisecond), WithMultiplier(3), WithMaxInterval(time.Second))

	assert.Equal(t, 100*time.Millisecond, r.Delay(1))
	assert.Equal(t, 300*time.Millisecond, r.Delay(2))
	assert.Equal(t, 900*time.Millisecond, r.Delay(3))
	assert.Equal(t, time.Second, r.Delay(4))
	assert.Equal(t, time.Second, r.Delay(50))
}

func TestRetrier_Jitter(t *testing.T) {
	r := New(WithJitter(0.5))

	r.random = func() float64 { return 1 }
	assert.Equal(t, 150*time.Millisecond, r.jittered(100*time.Millisecond))

	r.random = func() float64 { return 0 }
	assert.Equal(t, 50*time.Millisecond, r.jittered(100*time.Millisecond))

	assert.Equal(t, 100*time.Millisecond, New(WithJitter(0)).jittered(100*time.Millisecond))
}

func TestRetrier_RetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	var retried []int

	r := New(
		WithMaxRetries(5),
		WithInitialInterval(time.Millisecond),
		WithRetryIf(func(err error) bool { return !errors.Is(err, permanent) }),
		WithOnRetry(func(attempt int, _ error) { retried = append(retried, attempt) }),
	)

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errFlaky
		}
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []int{1}, retried)
}

func TestDoWithData(t *testing.T) {
	r := New(WithMaxRetries(2), WithInitialInterval(time.Millisecond))

	attempts := 0
	price, err := DoWithData(r, context.Background(), func(context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errFlaky
		}
		return "42.5", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "42.5", price)

	last, err := DoWithData(r, context.Background(), func(context.Context) (string, error) {
		return "stale", errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, "stale", last)
}
