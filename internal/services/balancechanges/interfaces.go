// Package balancechanges converts order fills into per-currency balance deltas,
// values them in the valuation currency and feeds them to accumulators.
package balancechanges

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

// SymbolProvider resolves currency semantics of a pair on an exchange account.
type SymbolProvider interface {
	GetSymbol(exchangeAccountID string, pair domain.CurrencyPair) (domain.Symbol, error)
}

// UsdConverter values an amount of a currency in the valuation currency.
type UsdConverter interface {
	Convert(ctx context.Context, currencyCode string, amount decimal.Decimal) (decimal.Decimal, error)
}

// PositionAuthority reports where the tracked position last crossed through flat.
type PositionAuthority interface {
	LastPositionChangeBefore(tradePlace domain.TradePlaceAccount, instant time.Time) *domain.PositionChange
}

// Accumulator receives every realized balance change.
// Implementations must be safe for concurrent use and must not block.
type Accumulator interface {
	AddBalanceChange(change domain.ProfitLossBalanceChange)
}

// Stopper accumulates changes and checks the configured loss limit.
type Stopper interface {
	Accumulator
	CheckForLimit(ctx context.Context, converter UsdConverter)
}

// Recorder persists realized balance changes.
type Recorder interface {
	Save(change domain.ProfitLossBalanceChange) error
}

// HistoryLoader loads previously persisted balance changes.
type HistoryLoader interface {
	LoadSince(since time.Time) ([]domain.ProfitLossBalanceChange, error)
}
