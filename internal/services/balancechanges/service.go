package balancechanges

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"github.com/vadiminshakov/pnltrack/internal/lifecycle"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName          = "BalanceChangesService"
	defaultTimerInterval = 5 * time.Second
	defaultQueueCapacity = 20_000
)

var (
	// ErrMissingClientOrderFillID means a fill arrived without its identifier.
	ErrMissingClientOrderFillID = errors.New("client order fill id is missing")
	// ErrEventQueueOverflow means producers outpaced the event loop.
	ErrEventQueueOverflow = errors.New("balance changes event queue is full")
	// ErrServiceStopped means an event was produced after the event loop stopped.
	ErrServiceStopped = errors.New("balance changes service is stopped")
	// ErrEventChannelClosed means the event channel closed while no cancellation was requested.
	ErrEventChannelClosed = errors.New("event channel is closed but cancellation hasn't been requested")
)

// Metrics observes the event pipeline.
type Metrics interface {
	EventProcessed(kind string)
	BalanceChangeRecorded(change domain.ProfitLossBalanceChange)
	ConversionFailed(currencyCode string)
	QueueLength(n int)
}

type nopMetrics struct{}

func (nopMetrics) EventProcessed(string) {}
func (nopMetrics) BalanceChangeRecorded(domain.ProfitLossBalanceChange) {}
func (nopMetrics) ConversionFailed(string) {}
func (nopMetrics) QueueLength(int) {}

type eventKind int

const (
	eventOnTimer eventKind = iota
	eventBalanceChange
)

func (k eventKind) String() string {
	if k == eventBalanceChange {
		return "balance_change"
	}
	return "on_timer"
}

type balanceChangeEvent struct {
	result            *CalculatorResult
	clientOrderFillID string
	changeDate        time.Time
}

type serviceEvent struct {
	kind          eventKind
	balanceChange *balanceChangeEvent
}

// Service serializes fills and timer ticks into a single event loop that values
// balance changes, fans them out to accumulators, persists them and re-checks the loss limit.
type Service struct {
	calculator   *Calculator
	stopper      Stopper
	converter    UsdConverter
	lifetime     *lifecycle.Manager
	recorder     Recorder
	accumulators []Accumulator
	logger       *zap.Logger
	metrics      Metrics

	history         HistoryLoader
	historyLookback time.Duration
	timerInterval   time.Duration
	now             func() time.Time

	events  chan serviceEvent
	mu      sync.RWMutex
	closed  bool
	stopped atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithAccumulators registers accumulators in addition to the stopper.
func WithAccumulators(accumulators ...Accumulator) Option {
	return func(s *Service) {
		s.accumulators = append(s.accumulators, accumulators...)
	}
}

// WithTimerInterval sets how often the loss limit is re-checked without new fills.
func WithTimerInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timerInterval = d
		}
	}
}

// WithQueueCapacity sets the event queue capacity.
func WithQueueCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.events = make(chan serviceEvent, n)
		}
	}
}

// WithHistory replays persisted changes younger than lookback into accumulators on start.
func WithHistory(loader HistoryLoader, lookback time.Duration) Option {
	return func(s *Service) {
		s.history = loader
		s.historyLookback = lookback
	}
}

// WithMetrics sets the pipeline observer.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the clock used to timestamp changes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. The stopper is always the first accumulator.
func NewService(symbols SymbolProvider, stopper Stopper, converter UsdConverter, lifetime *lifecycle.Manager,
	recorder Recorder, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		calculator:    NewCalculator(symbols),
		stopper:       stopper,
		converter:     converter,
		lifetime:      lifetime,
		recorder:      recorder,
		accumulators:  []Accumulator{stopper},
		logger:        logger.With(zap.String("service", serviceName)),
		metrics:       nopMetrics{},
		timerInterval: defaultTimerInterval,
		now:           time.Now,
		events:        make(chan serviceEvent, defaultQueueCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddBalanceChange calculates the balance changes of a fill and enqueues them for the event loop.
// Fills arriving after stop was requested are dropped. Every returned error is fatal
// and has already been reported to the lifetime manager.
func (s *Service) AddBalanceChange(cfg domain.ConfigurationDescriptor, order *domain.Order, fill *domain.OrderFill) error {
	if s.lifetime.IsStopRequested() {
		s.logger.Error("AddBalanceChange is not available because stop was requested")
		return nil
	}

	if fill == nil || fill.ClientOrderFillID == "" {
		clientOrderID := ""
		if order != nil {
			clientOrderID = order.ClientOrderID
		}
		return s.fatal(fmt.Errorf("%w: client order id %q", ErrMissingClientOrderFillID, clientOrderID))
	}

	result, err := s.calculator.GetBalanceChanges(cfg, order, fill)
	if err != nil {
		return s.fatal(errors.Wrap(err, "calculate balance changes"))
	}

	event := serviceEvent{
		kind: eventBalanceChange,
		balanceChange: &balanceChangeEvent{
			result:            result,
			clientOrderFillID: fill.ClientOrderFillID,
			changeDate:        s.now().UTC(),
		},
	}
	if err := s.send(event); err != nil {
		return s.fatal(errors.Wrap(err, "enqueue balance change"))
	}
	return nil
}

// Run processes events in arrival order until ctx is cancelled. Queued events are
// discarded on cancellation. A non-nil error is fatal.
func (s *Service) Run(ctx context.Context) error {
	defer s.stopped.Store(true)

	if err := s.replayHistory(ctx); err != nil {
		return s.fatal(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lifecycle.RunByTimer(gctx, s.logger, serviceName, 0, s.timerInterval, s.onTimerTick)
		return nil
	})
	g.Go(func() error {
		return s.loop(gctx)
	})
	return g.Wait()
}

// Close stops accepting events. A running loop treats it as a fatal producer shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func (s *Service) loop(ctx context.Context) error {
	s.logger.Info("Balance changes event loop started")

	for {
		var (
			event serviceEvent
			ok    bool
		)
		select {
		case <-ctx.Done():
			s.logger.Info("Balance changes event loop stopped", zap.Int("discarded_events", len(s.events)))
			return nil
		case event, ok = <-s.events:
		}

		if !ok {
			return s.fatal(ErrEventChannelClosed)
		}

		switch event.kind {
		case eventBalanceChange:
			if err := s.handleBalanceChange(ctx, event.balanceChange); err != nil {
				if ctx.Err() != nil {
					s.logger.Info("Balance change event abandoned on cancellation",
						zap.String("client_order_fill_id", event.balanceChange.clientOrderFillID))
					return nil
				}
				return s.fatal(err)
			}
		case eventOnTimer:
			s.stopper.CheckForLimit(ctx, s.converter)
		}

		s.metrics.EventProcessed(event.kind.String())
		s.metrics.QueueLength(len(s.events))
	}
}

func (s *Service) handleBalanceChange(ctx context.Context, event *balanceChangeEvent) error {
	result := event.result
	currencies := result.Currencies()

	// value every currency first so a cancelled valuation emits nothing for the fill
	usdChanges := make([]decimal.Decimal, len(currencies))
	for i, currencyCode := range currencies {
		usdChange, err := result.CalculateUsdChange(ctx, currencyCode, result.Change(currencyCode), s.converter)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("Failed to value balance change, using zero",
				zap.String("currency", currencyCode),
				zap.String("client_order_fill_id", event.clientOrderFillID),
				zap.Error(err))
			s.metrics.ConversionFailed(currencyCode)
			usdChange = decimal.Zero
		}
		usdChanges[i] = usdChange
	}

	for i, currencyCode := range currencies {
		change := domain.NewProfitLossBalanceChange(
			result.Configuration,
			result.TradePlace(),
			currencyCode,
			event.clientOrderFillID,
			event.changeDate,
			result.Change(currencyCode),
			usdChanges[i],
		)

		for _, accumulator := range s.accumulators {
			accumulator.AddBalanceChange(change)
		}

		if s.recorder != nil {
			if err := s.recorder.Save(change); err != nil {
				return errors.Wrapf(err, "save profit/loss balance change %s", change.ID)
			}
		}

		s.metrics.BalanceChangeRecorded(change)
		s.logger.Debug("Balance change recorded", zap.Stringer("change", change))
	}

	s.stopper.CheckForLimit(ctx, s.converter)
	return nil
}

func (s *Service) onTimerTick(_ context.Context) {
	if s.lifetime.IsStopRequested() {
		s.logger.Info("Timer tick skipped because stop was requested")
		return
	}
	err := s.send(serviceEvent{kind: eventOnTimer})
	switch {
	case err == nil:
	case errors.Is(err, ErrServiceStopped):
		s.logger.Debug("Timer tick skipped because the event loop is stopped")
	default:
		_ = s.fatal(errors.Wrap(err, "enqueue timer event"))
	}
}

func (s *Service) send(event serviceEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.stopped.Load() {
		return ErrServiceStopped
	}

	select {
	case s.events <- event:
		s.metrics.QueueLength(len(s.events))
		return nil
	default:
		return ErrEventQueueOverflow
	}
}

func (s *Service) replayHistory(ctx context.Context) error {
	if s.history == nil {
		return nil
	}

	since := s.now().Add(-s.historyLookback)
	changes, err := s.history.LoadSince(since)
	if err != nil {
		return errors.Wrap(err, "load balance changes history")
	}

	for _, change := range changes {
		for _, accumulator := range s.accumulators {
			accumulator.AddBalanceChange(change)
		}
	}
	s.logger.Info("Balance changes history replayed", zap.Int("changes", len(changes)), zap.Time("since", since))

	s.stopper.CheckForLimit(ctx, s.converter)
	return nil
}

func (s *Service) fatal(err error) error {
	s.lifetime.Fatal(err)
	return err
}
