package pricer

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

func TestStaticPricer_GetPrice(t *testing.T) {
	btcUsdt := domain.NewCurrencyPair("BTC", "USDT")
	p := NewStaticPricer(map[domain.CurrencyPair]decimal.Decimal{
		btcUsdt: decimal.NewFromInt(60000),
	})

	price, err := p.GetPrice(context.Background(), btcUsdt)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(60000)))

	_, err = p.GetPrice(context.Background(), domain.NewCurrencyPair("USDT", "BTC"))
	assert.ErrorIs(t, err, ErrNoPrice)

	p.SetPrice(btcUsdt, decimal.NewFromInt(61000))
	price, err = p.GetPrice(context.Background(), btcUsdt)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(61000)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.GetPrice(ctx, btcUsdt)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHyperliquidPricer_RejectsNonUsdcQuote(t *testing.T) {
	_, err := NewHyperliquidPricer(nil).GetPrice(context.Background(), domain.NewCurrencyPair("BTC", "USDT"))
	assert.ErrorIs(t, err, ErrNoPrice)

	_, err = NewHyperliquidPricer(nil).GetPrice(context.Background(), domain.NewCurrencyPair("BTC", "USDC"))
	assert.Error(t, err)
}
