// Package pricer provides last-trade prices of currency pairs from exchanges.
package pricer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

// ErrNoPrice means the source has no price for the requested pair.
var ErrNoPrice = errors.New("no price for pair")

// Pricer returns the current price of one unit of pair.Base in pair.Quote.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.CurrencyPair) (decimal.Decimal, error)
}

// StaticPricer serves prices from a fixed table. It is used in tests and dry runs.
type StaticPricer struct {
	mu     sync.RWMutex
	prices map[domain.CurrencyPair]decimal.Decimal
}

// NewStaticPricer creates a StaticPricer from a map of pair to price.
func NewStaticPricer(prices map[domain.CurrencyPair]decimal.Decimal) *StaticPricer {
	p := &StaticPricer{prices: make(map[domain.CurrencyPair]decimal.Decimal, len(prices))}
	for pair, price := range prices {
		p.prices[pair] = price
	}
	return p
}

// SetPrice replaces the price of pair.
func (p *StaticPricer) SetPrice(pair domain.CurrencyPair, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[pair] = price
}

func (p *StaticPricer) GetPrice(ctx context.Context, pair domain.CurrencyPair) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	price, ok := p.prices[pair]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "static table has no %s", pair.String())
	}
	return price, nil
}
