package domain

// Symbol describes currency semantics of a pair on a particular exchange.
type Symbol struct {
	CurrencyPair       CurrencyPair
	BaseCurrencyCode   string
	QuoteCurrencyCode  string
	AmountCurrencyCode string
}

// NewSymbol creates a symbol whose amounts are denominated in base currency.
func NewSymbol(pair CurrencyPair) Symbol {
	return Symbol{
		CurrencyPair:       pair,
		BaseCurrencyCode:   pair.Base,
		QuoteCurrencyCode:  pair.Quote,
		AmountCurrencyCode: pair.Base,
	}
}
