package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrencyPair(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected CurrencyPair
		wantErr  bool
	}{
		{name: "upper case", input: "BTC_USDT", expected: CurrencyPair{Base: "BTC", Quote: "USDT"}},
		{name: "lower case", input: "eth_btc", expected: CurrencyPair{Base: "ETH", Quote: "BTC"}},
		{name: "no separator", input: "BTCUSDT", wantErr: true},
		{name: "empty quote", input: "BTC_", wantErr: true},
		{name: "too many parts", input: "A_B_C", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := ParseCurrencyPair(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, pair)
		})
	}
}

func TestCurrencyPair_JSONAsText(t *testing.T) {
	type holder struct {
		Pair CurrencyPair `json:"pair"`
	}

	data, err := json.Marshal(holder{Pair: NewCurrencyPair("btc", "usdt")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pair":"BTC_USDT"}`, string(data))

	var decoded holder
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "BTCUSDT", decoded.Pair.Symbol())
	assert.True(t, decoded.Pair.Contains("USDT"))
	assert.False(t, decoded.Pair.Contains("ETH"))

	assert.Error(t, json.Unmarshal([]byte(`{"pair":"BTCUSDT"}`), &decoded))
}

func TestParseOrderSide(t *testing.T) {
	side, err := ParseOrderSide(" Buy ")
	require.NoError(t, err)
	assert.Equal(t, OrderSideBuy, side)
	assert.True(t, side.Sign().Equal(decimal.NewFromInt(1)))

	side, err = ParseOrderSide("sell")
	require.NoError(t, err)
	assert.True(t, side.Sign().Equal(decimal.NewFromInt(-1)))

	_, err = ParseOrderSide("hold")
	assert.Error(t, err)
	assert.Equal(t, "unknown", OrderSideUnknown.String())
}

func TestProfitLossBalanceChange_WithPortion(t *testing.T) {
	tradePlace := NewTradePlaceAccount("EXC1_0", NewCurrencyPair("BTC", "USDT"))
	change := NewProfitLossBalanceChange(NewConfigurationDescriptor("svc", "key"), tradePlace, "BTC", "fill1",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("X", 3600)), decimal.NewFromInt(4), decimal.NewFromInt(-10))

	scaled := change.WithPortion(decimal.RequireFromString("0.25"))

	assert.Equal(t, change.ID, scaled.ID)
	assert.Equal(t, change.ChangeDate, scaled.ChangeDate)
	assert.Equal(t, time.UTC, change.ChangeDate.Location())
	assert.Equal(t, tradePlace, scaled.TradePlace())
	assert.True(t, scaled.BalanceChange.Equal(decimal.NewFromInt(1)))
	assert.True(t, scaled.UsdBalanceChange.Equal(decimal.RequireFromString("-2.5")))
	assert.True(t, change.BalanceChange.Equal(decimal.NewFromInt(4)), "original is untouched")
}

func TestNewSymbol_DefaultsAmountCurrencyToBase(t *testing.T) {
	symbol := NewSymbol(NewCurrencyPair("eth", "btc"))

	assert.Equal(t, "ETH", symbol.AmountCurrencyCode)
	assert.Equal(t, "ETH", symbol.BaseCurrencyCode)
	assert.Equal(t, "BTC", symbol.QuoteCurrencyCode)
}
