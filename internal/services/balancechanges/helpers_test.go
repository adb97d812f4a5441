package balancechanges

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

const (
	exchangeAccountID1 = "EXC1_0"
	baseCode           = "BASE"
	quoteCode          = "QUOTE"
)

var (
	testPair       = domain.NewCurrencyPair(baseCode, quoteCode)
	testTradePlace = domain.NewTradePlaceAccount(exchangeAccountID1, testPair)
	testConfig     = domain.NewConfigurationDescriptor("test_service", "test_key")
	commissionRate = decimal.RequireFromString("0.1")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type symbolsStub struct {
	symbols map[domain.TradePlaceAccount]domain.Symbol
}

func newSymbolsStub(symbols ...domain.Symbol) *symbolsStub {
	s := &symbolsStub{symbols: make(map[domain.TradePlaceAccount]domain.Symbol)}
	for _, symbol := range symbols {
		s.symbols[domain.NewTradePlaceAccount(exchangeAccountID1, symbol.CurrencyPair)] = symbol
	}
	return s
}

func (s *symbolsStub) GetSymbol(exchangeAccountID string, pair domain.CurrencyPair) (domain.Symbol, error) {
	symbol, ok := s.symbols[domain.NewTradePlaceAccount(exchangeAccountID, pair)]
	if !ok {
		return domain.Symbol{}, fmt.Errorf("no symbol for %s", pair.String())
	}
	return symbol, nil
}

// priceConverter values currencies with fixed prices.
type priceConverter struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  int
}

func newPriceConverter(prices map[string]string) *priceConverter {
	c := &priceConverter{prices: make(map[string]decimal.Decimal)}
	for code, price := range prices {
		c.prices[code] = dec(price)
	}
	return c
}

func (c *priceConverter) Convert(ctx context.Context, currencyCode string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	price, ok := c.prices[currencyCode]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", currencyCode)
	}
	return amount.Mul(price), nil
}

func (c *priceConverter) setPrice(currencyCode, price string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[currencyCode] = dec(price)
}

// recorderMock is a testify mock of Recorder.
type recorderMock struct {
	mock.Mock
}

func (m *recorderMock) Save(change domain.ProfitLossBalanceChange) error {
	args := m.Called(change)
	return args.Error(0)
}

// accumulatorSpy collects every change it receives.
type accumulatorSpy struct {
	mu      sync.Mutex
	changes []domain.ProfitLossBalanceChange
}

func (a *accumulatorSpy) AddBalanceChange(change domain.ProfitLossBalanceChange) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changes = append(a.changes, change)
}

func (a *accumulatorSpy) all() []domain.ProfitLossBalanceChange {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.ProfitLossBalanceChange(nil), a.changes...)
}

// authorityStub returns a fixed position change when it precedes the asked instant.
type authorityStub struct {
	mu     sync.Mutex
	change *domain.PositionChange
}

func (a *authorityStub) LastPositionChangeBefore(_ domain.TradePlaceAccount, instant time.Time) *domain.PositionChange {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.change == nil || !a.change.ChangeDate.Before(instant) {
		return nil
	}
	change := *a.change
	return &change
}

func (a *authorityStub) set(change *domain.PositionChange) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.change = change
}

func newOrder(side domain.OrderSide) *domain.Order {
	return &domain.Order{
		ClientOrderID:     "order",
		ExchangeAccountID: exchangeAccountID1,
		CurrencyPair:      testPair,
		Side:              side,
	}
}

func newFill(id string, price, amount decimal.Decimal, amountCurrency, commissionCurrency string, commission decimal.Decimal) *domain.OrderFill {
	return &domain.OrderFill{
		ClientOrderFillID:      id,
		Price:                  price,
		Amount:                 amount,
		AmountCurrencyCode:     amountCurrency,
		CommissionAmount:       commission,
		CommissionCurrencyCode: commissionCurrency,
	}
}

func newChange(fillID, currencyCode string, changeDate time.Time, balanceChange, usdChange string) domain.ProfitLossBalanceChange {
	return domain.NewProfitLossBalanceChange(testConfig, testTradePlace, currencyCode, fillID, changeDate,
		dec(balanceChange), dec(usdChange))
}
