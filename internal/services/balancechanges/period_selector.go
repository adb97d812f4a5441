package balancechanges

import (
	"sync"
	"time"

	"github.com/vadiminshakov/pnltrack/internal/domain"
	"go.uber.org/zap"
)

// PeriodSelector keeps a sliding window of balance changes per trade place.
//
// Without a position authority the window holds changes from [now-period, now].
// When the authority reports a position change before now-period, changes are
// kept back to and including the fill of that position change.
type PeriodSelector struct {
	period    time.Duration
	logger    *zap.Logger
	authority PositionAuthority
	now       func() time.Time

	mu     sync.Mutex
	queues map[domain.TradePlaceAccount]*changeQueue
}

// PeriodSelectorOption configures a PeriodSelector.
type PeriodSelectorOption func(*PeriodSelector)

// WithPositionAuthority enables position-aware retention.
func WithPositionAuthority(authority PositionAuthority) PeriodSelectorOption {
	return func(s *PeriodSelector) {
		s.authority = authority
	}
}

// WithSelectorClock overrides the clock used by reads.
func WithSelectorClock(now func() time.Time) PeriodSelectorOption {
	return func(s *PeriodSelector) {
		s.now = now
	}
}

// NewPeriodSelector creates a selector for the given period.
func NewPeriodSelector(period time.Duration, logger *zap.Logger, opts ...PeriodSelectorOption) *PeriodSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PeriodSelector{
		period: period,
		logger: logger,
		now:    time.Now,
		queues: make(map[domain.TradePlaceAccount]*changeQueue),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Period returns the window length.
func (s *PeriodSelector) Period() time.Duration {
	return s.period
}

// AddBalanceChange implements Accumulator.
func (s *PeriodSelector) AddBalanceChange(change domain.ProfitLossBalanceChange) {
	s.Add(change)
}

// Add appends the change to its trade place queue and synchronizes the window at change time.
func (s *PeriodSelector) Add(change domain.ProfitLossBalanceChange) {
	s.logger.Debug("Balance change enqueued",
		zap.Time("change_date", change.ChangeDate),
		zap.String("currency", change.CurrencyCode),
		zap.Stringer("balance_change", change.BalanceChange))

	tradePlace := change.TradePlace()

	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[tradePlace]
	if !ok {
		queue = &changeQueue{}
		s.queues[tradePlace] = queue
	}
	queue.pushBack(change)

	s.synchronizePeriod(change.ChangeDate, tradePlace)
}

// Synchronize evicts changes of the trade place that fell out of the window ending at now
// and returns the position change the window is anchored to, if any.
func (s *PeriodSelector) Synchronize(now time.Time, tradePlace domain.TradePlaceAccount) *domain.PositionChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.synchronizePeriod(now, tradePlace)
}

// synchronizePeriod evicts changes that fell out of the window. Caller holds s.mu.
// A reported boundary whose fill is not queued is a defensive guard case: it is ignored
// and eviction falls back to the period start instead of emptying the queue.
func (s *PeriodSelector) synchronizePeriod(now time.Time, tradePlace domain.TradePlaceAccount) *domain.PositionChange {
	startOfPeriod := now.Add(-s.period)

	queue, ok := s.queues[tradePlace]
	if !ok {
		s.logger.Error("Can't find balance changes queue for trade place", zap.Stringer("trade_place", tradePlace))
		return nil
	}

	var positionChange *domain.PositionChange
	if s.authority != nil {
		positionChange = s.authority.LastPositionChangeBefore(tradePlace, startOfPeriod)
		if positionChange != nil && !queue.containsFill(positionChange.ClientOrderFillID) {
			s.logger.Warn("Position change fill is not in balance changes queue, using period boundary",
				zap.Stringer("trade_place", tradePlace),
				zap.String("client_order_fill_id", positionChange.ClientOrderFillID))
			positionChange = nil
		}
	}

	for {
		front, ok := queue.front()
		if !ok {
			break
		}
		if positionChange == nil && !front.ChangeDate.Before(startOfPeriod) {
			break
		}
		if positionChange != nil && front.ClientOrderFillID == positionChange.ClientOrderFillID {
			break
		}

		s.logger.Debug("Balance change dequeued",
			zap.Time("change_date", front.ChangeDate),
			zap.String("currency", front.CurrencyCode),
			zap.Stringer("balance_change", front.BalanceChange))
		queue.popFront()
	}

	return positionChange
}

// GetItemsByTradePlace returns the window of a trade place, oldest first.
// Changes of the position change fill are scaled by its portion; stored changes are not modified.
func (s *PeriodSelector) GetItemsByTradePlace(tradePlace domain.TradePlaceAccount) []domain.ProfitLossBalanceChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.itemsByTradePlace(s.now(), tradePlace)
}

func (s *PeriodSelector) itemsByTradePlace(now time.Time, tradePlace domain.TradePlaceAccount) []domain.ProfitLossBalanceChange {
	positionChange := s.synchronizePeriod(now, tradePlace)

	queue, ok := s.queues[tradePlace]
	if !ok {
		return nil
	}

	items := queue.snapshot()
	if positionChange == nil {
		return items
	}
	for i := range items {
		if items[i].ClientOrderFillID == positionChange.ClientOrderFillID {
			items[i] = items[i].WithPortion(positionChange.Portion)
		}
	}
	return items
}

// GetItems returns the windows of all known trade places. Order across trade places is unspecified.
func (s *PeriodSelector) GetItems() [][]domain.ProfitLossBalanceChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	result := make([][]domain.ProfitLossBalanceChange, 0, len(s.queues))
	for tradePlace := range s.queues {
		result = append(result, s.itemsByTradePlace(now, tradePlace))
	}
	return result
}

// TradePlaces returns all trade places that received at least one change.
func (s *PeriodSelector) TradePlaces() []domain.TradePlaceAccount {
	s.mu.Lock()
	defer s.mu.Unlock()

	tradePlaces := make([]domain.TradePlaceAccount, 0, len(s.queues))
	for tradePlace := range s.queues {
		tradePlaces = append(tradePlaces, tradePlace)
	}
	return tradePlaces
}
