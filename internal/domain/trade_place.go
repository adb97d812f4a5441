package domain

import "fmt"

// TradePlaceAccount identifies one ledger bucket: an exchange account trading a currency pair.
type TradePlaceAccount struct {
	ExchangeAccountID string       `json:"exchange_account_id"`
	CurrencyPair      CurrencyPair `json:"currency_pair"`
}

// NewTradePlaceAccount creates a TradePlaceAccount.
func NewTradePlaceAccount(exchangeAccountID string, pair CurrencyPair) TradePlaceAccount {
	return TradePlaceAccount{ExchangeAccountID: exchangeAccountID, CurrencyPair: pair}
}

// String returns the string representation.
func (t TradePlaceAccount) String() string {
	return fmt.Sprintf("%s:%s", t.ExchangeAccountID, t.CurrencyPair.String())
}
