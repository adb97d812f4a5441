package balancechanges

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

// CalculatorResult holds signed per-currency deltas of one fill.
type CalculatorResult struct {
	Configuration     domain.ConfigurationDescriptor
	ExchangeAccountID string
	CurrencyPair      domain.CurrencyPair

	currencies []string
	changes    map[string]decimal.Decimal
}

func newCalculatorResult(cfg domain.ConfigurationDescriptor, exchangeAccountID string, pair domain.CurrencyPair) *CalculatorResult {
	return &CalculatorResult{
		Configuration:     cfg,
		ExchangeAccountID: exchangeAccountID,
		CurrencyPair:      pair,
		changes:           make(map[string]decimal.Decimal, 3),
	}
}

func (r *CalculatorResult) add(currencyCode string, amount decimal.Decimal) {
	current, ok := r.changes[currencyCode]
	if !ok {
		r.currencies = append(r.currencies, currencyCode)
	}
	r.changes[currencyCode] = current.Add(amount)
}

// TradePlace returns the trade place the fill belongs to.
func (r *CalculatorResult) TradePlace() domain.TradePlaceAccount {
	return domain.NewTradePlaceAccount(r.ExchangeAccountID, r.CurrencyPair)
}

// Changes returns a copy of the currency code to signed delta mapping.
func (r *CalculatorResult) Changes() map[string]decimal.Decimal {
	changes := make(map[string]decimal.Decimal, len(r.changes))
	for code, amount := range r.changes {
		changes[code] = amount
	}
	return changes
}

// Currencies returns changed currencies in processing order: base, quote, then others.
func (r *CalculatorResult) Currencies() []string {
	return append([]string(nil), r.currencies...)
}

// Change returns the delta of one currency, zero if it did not change.
func (r *CalculatorResult) Change(currencyCode string) decimal.Decimal {
	return r.changes[currencyCode]
}

// CalculateUsdChange values the delta in the valuation currency. It may block on a live quote.
func (r *CalculatorResult) CalculateUsdChange(ctx context.Context, currencyCode string, balanceChange decimal.Decimal, converter UsdConverter) (decimal.Decimal, error) {
	if balanceChange.IsZero() {
		return decimal.Zero, nil
	}
	usdChange, err := converter.Convert(ctx, currencyCode, balanceChange)
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert %s %s for %s: %w", balanceChange.String(), currencyCode, r.TradePlace().String(), err)
	}
	return usdChange, nil
}
