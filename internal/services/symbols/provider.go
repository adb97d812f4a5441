// Package symbols resolves the currency semantics of pairs traded on each exchange account.
package symbols

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

// ErrUnknownSymbol means no symbol is registered for the exchange account and pair.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Provider is an in-memory registry of symbols.
type Provider struct {
	mu      sync.RWMutex
	symbols map[domain.TradePlaceAccount]domain.Symbol
}

// NewProvider creates an empty registry.
func NewProvider() *Provider {
	return &Provider{symbols: make(map[domain.TradePlaceAccount]domain.Symbol)}
}

// Register adds or replaces the symbol of pair on exchangeAccountID.
// An empty amount currency defaults to the base currency.
func (p *Provider) Register(exchangeAccountID string, symbol domain.Symbol) {
	if symbol.BaseCurrencyCode == "" {
		symbol.BaseCurrencyCode = symbol.CurrencyPair.Base
	}
	if symbol.QuoteCurrencyCode == "" {
		symbol.QuoteCurrencyCode = symbol.CurrencyPair.Quote
	}
	if symbol.AmountCurrencyCode == "" {
		symbol.AmountCurrencyCode = symbol.BaseCurrencyCode
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbols[domain.NewTradePlaceAccount(exchangeAccountID, symbol.CurrencyPair)] = symbol
}

// GetSymbol returns the symbol of pair on exchangeAccountID.
func (p *Provider) GetSymbol(exchangeAccountID string, pair domain.CurrencyPair) (domain.Symbol, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	symbol, ok := p.symbols[domain.NewTradePlaceAccount(exchangeAccountID, pair)]
	if !ok {
		return domain.Symbol{}, errors.Wrapf(ErrUnknownSymbol, "%s on %s", pair.String(), exchangeAccountID)
	}
	return symbol, nil
}
