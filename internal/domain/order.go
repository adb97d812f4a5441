package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderSide represents the direction of an order.
type OrderSide int

const (
	// OrderSideUnknown is the zero value, meaning the side is not set.
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

const (
	orderSideStringBuy  = "buy"
	orderSideStringSell = "sell"
)

// String returns the string representation of the side.
func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return orderSideStringBuy
	case OrderSideSell:
		return orderSideStringSell
	default:
		return "unknown"
	}
}

// Sign returns +1 for buy and -1 for sell.
func (s OrderSide) Sign() decimal.Decimal {
	if s == OrderSideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// ParseOrderSide converts "buy"/"sell" into an OrderSide.
func ParseOrderSide(s string) (OrderSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case orderSideStringBuy:
		return OrderSideBuy, nil
	case orderSideStringSell:
		return OrderSideSell, nil
	}
	return OrderSideUnknown, errors.Errorf("unknown order side %q", s)
}

// Order is a snapshot of the order header needed for balance accounting.
type Order struct {
	ClientOrderID     string
	ExchangeAccountID string
	CurrencyPair      CurrencyPair
	Side              OrderSide
	Price             decimal.Decimal
	Amount            decimal.Decimal
}

// TradePlace returns the trade place the order belongs to.
func (o *Order) TradePlace() TradePlaceAccount {
	return NewTradePlaceAccount(o.ExchangeAccountID, o.CurrencyPair)
}

// OrderFill is a (partial) execution of an order.
type OrderFill struct {
	// ClientOrderFillID is empty when the exchange event carried no identifier.
	ClientOrderFillID string
	ReceiveTime       time.Time
	Price             decimal.Decimal
	Amount            decimal.Decimal
	// AmountCurrencyCode currency the amount is denominated in, empty means the symbol default.
	AmountCurrencyCode     string
	CommissionAmount       decimal.Decimal
	CommissionCurrencyCode string
	// Side overrides the order side when set.
	Side OrderSide
}
