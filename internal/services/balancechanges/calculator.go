package balancechanges

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

var (
	// ErrSymbolUnavailable means currency metadata for the pair is not configured.
	ErrSymbolUnavailable = errors.New("currency pair metadata is unavailable")
	// ErrInvalidFill means the order or fill cannot be turned into balance changes.
	ErrInvalidFill = errors.New("invalid order fill")
)

// Calculator derives per-currency balance deltas from order fills.
type Calculator struct {
	symbols SymbolProvider
}

// NewCalculator creates a Calculator.
func NewCalculator(symbols SymbolProvider) *Calculator {
	return &Calculator{symbols: symbols}
}

// GetBalanceChanges returns the signed deltas caused by fill.
//
// A buy adds the base amount and spends amount*price of quote, a sell is the
// mirror. The commission is always subtracted from its own currency.
func (c *Calculator) GetBalanceChanges(cfg domain.ConfigurationDescriptor, order *domain.Order, fill *domain.OrderFill) (*CalculatorResult, error) {
	if order == nil || fill == nil {
		return nil, fmt.Errorf("%w: order and fill are required", ErrInvalidFill)
	}

	tradePlace := order.TradePlace()
	symbol, err := c.symbols.GetSymbol(order.ExchangeAccountID, order.CurrencyPair)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrSymbolUnavailable, tradePlace.String(), err)
	}

	side := fill.Side
	if side == domain.OrderSideUnknown {
		side = order.Side
	}
	if side == domain.OrderSideUnknown {
		return nil, fmt.Errorf("%w: side is not set for %s", ErrInvalidFill, tradePlace.String())
	}
	if !fill.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidFill, fill.Price.String())
	}
	if fill.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative, got %s", ErrInvalidFill, fill.Amount.String())
	}

	amountCurrencyCode := fill.AmountCurrencyCode
	if amountCurrencyCode == "" {
		amountCurrencyCode = symbol.AmountCurrencyCode
	}

	amountInBase := fill.Amount
	amountInQuote := fill.Amount.Mul(fill.Price)
	switch amountCurrencyCode {
	case symbol.BaseCurrencyCode:
	case symbol.QuoteCurrencyCode:
		amountInBase = fill.Amount.Div(fill.Price)
		amountInQuote = fill.Amount
	default:
		return nil, fmt.Errorf("%w: amount currency %q is not part of %s",
			ErrSymbolUnavailable, amountCurrencyCode, tradePlace.String())
	}

	sign := side.Sign()
	result := newCalculatorResult(cfg, order.ExchangeAccountID, order.CurrencyPair)
	result.add(symbol.BaseCurrencyCode, sign.Mul(amountInBase))
	result.add(symbol.QuoteCurrencyCode, sign.Neg().Mul(amountInQuote))

	if !fill.CommissionAmount.IsZero() {
		if fill.CommissionCurrencyCode == "" {
			return nil, fmt.Errorf("%w: commission currency is not set for %s", ErrInvalidFill, tradePlace.String())
		}
		result.add(fill.CommissionCurrencyCode, fill.CommissionAmount.Neg())
	}

	return result, nil
}
