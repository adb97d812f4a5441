package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

func TestProvider_GetSymbol(t *testing.T) {
	p := NewProvider()
	btcUsdt := domain.NewCurrencyPair("BTC", "USDT")
	p.Register("binance_0", domain.Symbol{CurrencyPair: btcUsdt, AmountCurrencyCode: "USDT"})
	p.Register("bybit_0", domain.Symbol{CurrencyPair: btcUsdt})

	symbol, err := p.GetSymbol("binance_0", btcUsdt)
	require.NoError(t, err)
	assert.Equal(t, "USDT", symbol.AmountCurrencyCode)
	assert.Equal(t, "BTC", symbol.BaseCurrencyCode)

	symbol, err = p.GetSymbol("bybit_0", btcUsdt)
	require.NoError(t, err)
	assert.Equal(t, "BTC", symbol.AmountCurrencyCode)

	_, err = p.GetSymbol("okx_0", btcUsdt)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}
