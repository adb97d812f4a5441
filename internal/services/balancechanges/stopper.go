package balancechanges

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"go.uber.org/zap"
)

// LimitHandler is called when the loss of a trade place goes beyond the limit.
type LimitHandler func(ctx context.Context, tradePlace domain.TradePlaceAccount, usdProfitLoss decimal.Decimal)

// ProfitLossStopperService tracks realized profit/loss per trade place over a period
// and calls the limit handler once the loss exceeds the configured limit.
type ProfitLossStopperService struct {
	limit    decimal.Decimal
	selector *PeriodSelector
	onLimit  LimitHandler
	logger   *zap.Logger

	mu      sync.Mutex
	reached map[domain.TradePlaceAccount]bool
}

// NewProfitLossStopperService creates a stopper. A non-positive limit disables the check.
func NewProfitLossStopperService(limit decimal.Decimal, period time.Duration, logger *zap.Logger,
	onLimit LimitHandler, opts ...PeriodSelectorOption) *ProfitLossStopperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "profit_loss_stopper"))

	return &ProfitLossStopperService{
		limit:    limit,
		selector: NewPeriodSelector(period, logger, opts...),
		onLimit:  onLimit,
		logger:   logger,
		reached:  make(map[domain.TradePlaceAccount]bool),
	}
}

// AddBalanceChange implements Accumulator.
func (s *ProfitLossStopperService) AddBalanceChange(change domain.ProfitLossBalanceChange) {
	s.selector.Add(change)
}

// CheckForLimit values the period of every trade place at current rates and fires the
// limit handler for trade places whose loss exceeds the limit.
func (s *ProfitLossStopperService) CheckForLimit(ctx context.Context, converter UsdConverter) {
	if !s.limit.IsPositive() {
		return
	}

	for _, tradePlace := range s.selector.TradePlaces() {
		if ctx.Err() != nil {
			return
		}

		profitLoss, err := s.CalculateProfitLoss(ctx, tradePlace, converter)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			s.logger.Warn("Failed to calculate profit/loss", zap.Stringer("trade_place", tradePlace), zap.Error(err))
			continue
		}

		reached := profitLoss.LessThan(s.limit.Neg())

		s.mu.Lock()
		wasReached := s.reached[tradePlace]
		s.reached[tradePlace] = reached
		s.mu.Unlock()

		switch {
		case reached && !wasReached:
			s.logger.Warn("Profit/loss limit reached",
				zap.Stringer("trade_place", tradePlace),
				zap.Stringer("usd_profit_loss", profitLoss),
				zap.Stringer("limit", s.limit))
			if s.onLimit != nil {
				s.onLimit(ctx, tradePlace, profitLoss)
			}
		case !reached && wasReached:
			s.logger.Info("Profit/loss recovered above limit",
				zap.Stringer("trade_place", tradePlace),
				zap.Stringer("usd_profit_loss", profitLoss))
		}
	}
}

// CalculateProfitLoss nets the period changes per currency and values them at current rates.
func (s *ProfitLossStopperService) CalculateProfitLoss(ctx context.Context, tradePlace domain.TradePlaceAccount,
	converter UsdConverter) (decimal.Decimal, error) {
	items := s.selector.GetItemsByTradePlace(tradePlace)

	var currencies []string
	net := make(map[string]decimal.Decimal)
	for _, item := range items {
		if _, ok := net[item.CurrencyCode]; !ok {
			currencies = append(currencies, item.CurrencyCode)
		}
		net[item.CurrencyCode] = net[item.CurrencyCode].Add(item.BalanceChange)
	}

	total := decimal.Zero
	for _, currencyCode := range currencies {
		amount := net[currencyCode]
		if amount.IsZero() {
			continue
		}
		usd, err := converter.Convert(ctx, currencyCode, amount)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "value %s %s", amount.String(), currencyCode)
		}
		total = total.Add(usd)
	}
	return total, nil
}

// LimitReached reports whether the last check found the trade place beyond the limit.
func (s *ProfitLossStopperService) LimitReached(tradePlace domain.TradePlaceAccount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reached[tradePlace]
}

// Selector returns the window the stopper accounts over.
func (s *ProfitLossStopperService) Selector() *PeriodSelector {
	return s.selector
}
