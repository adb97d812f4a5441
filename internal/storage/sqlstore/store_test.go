package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newChange(tp domain.TradePlaceAccount, fillID, currency string, at time.Time, amount, usd string) domain.ProfitLossBalanceChange {
	return domain.NewProfitLossBalanceChange(domain.NewConfigurationDescriptor("svc", "key"), tp, currency, fillID, at,
		decimal.RequireFromString(amount), decimal.RequireFromString(usd))
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "db", "changes.db"))
	require.NoError(t, err)
	defer store.Close()

	btc := domain.NewTradePlaceAccount("EXC1_0", domain.NewCurrencyPair("BTC", "USDT"))
	eth := domain.NewTradePlaceAccount("EXC1_0", domain.NewCurrencyPair("ETH", "USDT"))

	old := newChange(btc, "fill1", "BTC", t0, "0.00000001", "0.0006")
	recent := newChange(btc, "fill2", "USDT", t0.Add(time.Hour), "-123.456789", "-123.456789")
	other := newChange(eth, "fill3", "ETH", t0.Add(2*time.Hour), "2", "6000")
	for _, change := range []domain.ProfitLossBalanceChange{old, recent, other} {
		require.NoError(t, store.Save(change))
	}

	changes, err := store.LoadSince(t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assertSameChange(t, recent, changes[0])
	assertSameChange(t, other, changes[1])

	all, err := store.LoadSince(time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].BalanceChange.Equal(decimal.RequireFromString("0.00000001")))

	byPlace, err := store.ByTradePlace(context.Background(), btc, t0)
	require.NoError(t, err)
	require.Len(t, byPlace, 2)
	assert.Equal(t, "fill1", byPlace[0].ClientOrderFillID)
	assert.Equal(t, "fill2", byPlace[1].ClientOrderFillID)
}

func TestStore_DuplicateChangeRejected(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "changes.db"))
	require.NoError(t, err)
	defer store.Close()

	change := newChange(domain.NewTradePlaceAccount("EXC1_0", domain.NewCurrencyPair("BTC", "USDT")),
		"fill1", "BTC", t0, "1", "1")
	require.NoError(t, store.Save(change))
	assert.Error(t, store.Save(change))
}

func TestNewStore_EmptyPath(t *testing.T) {
	_, err := NewStore("  ")
	assert.Error(t, err)
}

func assertSameChange(t *testing.T, expected, actual domain.ProfitLossBalanceChange) {
	t.Helper()
	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.Configuration, actual.Configuration)
	assert.Equal(t, expected.TradePlace(), actual.TradePlace())
	assert.Equal(t, expected.CurrencyCode, actual.CurrencyCode)
	assert.Equal(t, expected.ClientOrderFillID, actual.ClientOrderFillID)
	assert.True(t, expected.ChangeDate.Equal(actual.ChangeDate))
	assert.True(t, expected.BalanceChange.Equal(actual.BalanceChange))
	assert.True(t, expected.UsdBalanceChange.Equal(actual.UsdBalanceChange))
}
