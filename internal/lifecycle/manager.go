// Package lifecycle owns the application stop token and fatal error propagation.
package lifecycle

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrStopRequested is the cancellation cause of a graceful stop.
var ErrStopRequested = errors.New("stop requested")

// Manager holds the process-wide stop token.
// Fatal errors cancel the token so every dependent component shuts down.
type Manager struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu  sync.Mutex
	err error
}

// NewManager creates a manager whose stop token is derived from parent.
func NewManager(parent context.Context, logger *zap.Logger) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Manager{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// StopToken returns a context cancelled once stop is requested.
func (m *Manager) StopToken() context.Context {
	return m.ctx
}

// IsStopRequested reports whether the stop token is cancelled.
func (m *Manager) IsStopRequested() bool {
	return m.ctx.Err() != nil
}

// RequestStop cancels the stop token gracefully.
func (m *Manager) RequestStop(reason string) {
	if m.IsStopRequested() {
		return
	}
	m.logger.Info("Stop requested", zap.String("reason", reason))
	m.cancel(ErrStopRequested)
}

// Fatal records the first fatal error and cancels the stop token with it.
func (m *Manager) Fatal(err error) {
	if err == nil {
		return
	}

	m.mu.Lock()
	first := m.err == nil
	if first {
		m.err = err
	}
	m.mu.Unlock()

	m.logger.Error("Fatal error, stopping application", zap.Error(err), zap.Bool("first", first))
	m.cancel(err)
}

// Err returns the first fatal error, nil if the application stopped gracefully or is running.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}
