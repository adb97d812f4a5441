package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProfitLossBalanceChange is one realized balance delta of one currency caused by one fill.
type ProfitLossBalanceChange struct {
	ID                uuid.UUID               `json:"id"`
	Configuration     ConfigurationDescriptor `json:"configuration"`
	ExchangeAccountID string                  `json:"exchange_account_id"`
	CurrencyPair      CurrencyPair            `json:"currency_pair"`
	CurrencyCode      string                  `json:"currency_code"`
	ClientOrderFillID string                  `json:"client_order_fill_id"`
	ChangeDate        time.Time               `json:"change_date"`
	BalanceChange     decimal.Decimal         `json:"balance_change"`
	UsdBalanceChange  decimal.Decimal         `json:"usd_balance_change"`
}

// NewProfitLossBalanceChange creates a change with a fresh identifier.
func NewProfitLossBalanceChange(
	configuration ConfigurationDescriptor,
	tradePlace TradePlaceAccount,
	currencyCode string,
	clientOrderFillID string,
	changeDate time.Time,
	balanceChange decimal.Decimal,
	usdBalanceChange decimal.Decimal,
) ProfitLossBalanceChange {
	return ProfitLossBalanceChange{
		ID:                uuid.New(),
		Configuration:     configuration,
		ExchangeAccountID: tradePlace.ExchangeAccountID,
		CurrencyPair:      tradePlace.CurrencyPair,
		CurrencyCode:      currencyCode,
		ClientOrderFillID: clientOrderFillID,
		ChangeDate:        changeDate.UTC(),
		BalanceChange:     balanceChange,
		UsdBalanceChange:  usdBalanceChange,
	}
}

// TradePlace returns the ledger bucket of the change.
func (c ProfitLossBalanceChange) TradePlace() TradePlaceAccount {
	return NewTradePlaceAccount(c.ExchangeAccountID, c.CurrencyPair)
}

// WithPortion returns a copy with both deltas scaled by portion. Identity fields are kept.
func (c ProfitLossBalanceChange) WithPortion(portion decimal.Decimal) ProfitLossBalanceChange {
	c.BalanceChange = c.BalanceChange.Mul(portion)
	c.UsdBalanceChange = c.UsdBalanceChange.Mul(portion)
	return c
}

// String returns a human-readable string representation.
func (c ProfitLossBalanceChange) String() string {
	return fmt.Sprintf("%s %s %s change: %s usd: %s fill: %s",
		c.ChangeDate.Format(time.RFC3339Nano), c.TradePlace().String(), c.CurrencyCode,
		c.BalanceChange.String(), c.UsdBalanceChange.String(), c.ClientOrderFillID)
}

// ProfitLossBalanceChangeRecord bundles a persisted change with its storage index.
type ProfitLossBalanceChangeRecord struct {
	Index  uint64                  `json:"index"`
	Change ProfitLossBalanceChange `json:"change"`
}
