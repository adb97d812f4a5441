package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunByTimer calls action after delay and then every period until ctx is cancelled.
// A tick that already started is not interrupted: action receives a context
// detached from ctx cancellation.
func RunByTimer(ctx context.Context, logger *zap.Logger, name string, delay, period time.Duration, action func(ctx context.Context)) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("timer", name))

	if delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			logger.Debug("Timer stopped")
			return
		}

		action(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			logger.Debug("Timer stopped")
			return
		case <-ticker.C:
		}
	}
}
