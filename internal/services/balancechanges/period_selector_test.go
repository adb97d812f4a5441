package balancechanges

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(now *time.Time) func() time.Time {
	return func() time.Time { return *now }
}

func fillIDs(items []domain.ProfitLossBalanceChange) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ClientOrderFillID)
	}
	return ids
}

func TestPeriodSelector_WithoutPositionAuthority(t *testing.T) {
	now := t0.Add(2 * time.Hour)
	selector := NewPeriodSelector(90*time.Minute, zap.NewNop(), WithSelectorClock(fixedClock(&now)))

	selector.Add(newChange("fill1", baseCode, t0, "1", "10"))
	selector.Add(newChange("fill2", baseCode, t0.Add(time.Hour), "2", "20"))
	selector.Add(newChange("fill3", baseCode, t0.Add(2*time.Hour), "3", "30"))

	items := selector.GetItemsByTradePlace(testTradePlace)
	assert.Equal(t, []string{"fill2", "fill3"}, fillIDs(items))
	for _, item := range items {
		assert.False(t, item.ChangeDate.Before(now.Add(-selector.Period())))
	}

	t.Run("window slides with the clock", func(t *testing.T) {
		now = t0.Add(3*time.Hour + 15*time.Minute)
		assert.Equal(t, []string{"fill3"}, fillIDs(selector.GetItemsByTradePlace(testTradePlace)))

		now = t0.Add(4 * time.Hour)
		assert.Empty(t, selector.GetItemsByTradePlace(testTradePlace))
	})
}

func TestPeriodSelector_AddSynchronizesAtChangeDate(t *testing.T) {
	now := t0
	selector := NewPeriodSelector(time.Hour, zap.NewNop(), WithSelectorClock(fixedClock(&now)))

	selector.Add(newChange("fill1", baseCode, t0, "1", "1"))
	selector.Add(newChange("fill2", baseCode, t0.Add(2*time.Hour), "1", "1"))

	// the read clock is behind the latest change, fill1 was evicted by Add anyway
	assert.Equal(t, []string{"fill2"}, fillIDs(selector.GetItemsByTradePlace(testTradePlace)))
}

func TestPeriodSelector_KeepsBoundaryFillOutsidePeriod(t *testing.T) {
	now := t0.Add(3 * time.Hour)
	authority := &authorityStub{}
	authority.set(&domain.PositionChange{ClientOrderFillID: "fill1", ChangeDate: t0, Portion: dec("0.25")})
	selector := NewPeriodSelector(time.Hour, zap.NewNop(),
		WithPositionAuthority(authority), WithSelectorClock(fixedClock(&now)))

	selector.Add(newChange("fill0", baseCode, t0.Add(-time.Hour), "7", "70"))
	selector.Add(newChange("fill1", baseCode, t0, "4", "40"))
	selector.Add(newChange("fill1", quoteCode, t0, "-8", "-8"))
	selector.Add(newChange("fill2", baseCode, t0.Add(time.Hour), "2", "20"))
	selector.Add(newChange("fill3", baseCode, t0.Add(3*time.Hour), "1", "10"))

	items := selector.GetItemsByTradePlace(testTradePlace)
	require.Equal(t, []string{"fill1", "fill1", "fill2", "fill3"}, fillIDs(items))

	assertDecimal(t, dec("1"), items[0].BalanceChange)
	assertDecimal(t, dec("10"), items[0].UsdBalanceChange)
	assertDecimal(t, dec("-2"), items[1].BalanceChange)
	assertDecimal(t, dec("-2"), items[1].UsdBalanceChange)
	assertDecimal(t, dec("2"), items[2].BalanceChange)
	assertDecimal(t, dec("1"), items[3].BalanceChange)

	t.Run("reads are idempotent and do not mutate stored changes", func(t *testing.T) {
		again := selector.GetItemsByTradePlace(testTradePlace)
		assert.Equal(t, items, again)
	})

	t.Run("boundary moving forward evicts older fills", func(t *testing.T) {
		authority.set(&domain.PositionChange{ClientOrderFillID: "fill2", ChangeDate: t0.Add(time.Hour), Portion: dec("1")})

		items := selector.GetItemsByTradePlace(testTradePlace)
		assert.Equal(t, []string{"fill2", "fill3"}, fillIDs(items))
		assertDecimal(t, dec("2"), items[0].BalanceChange)
	})
}

func TestPeriodSelector_BoundaryInsidePeriodIsIgnored(t *testing.T) {
	now := t0.Add(30 * time.Minute)
	authority := &authorityStub{}
	authority.set(&domain.PositionChange{ClientOrderFillID: "fill2", ChangeDate: t0.Add(10 * time.Minute), Portion: dec("0.5")})
	selector := NewPeriodSelector(time.Hour, zap.NewNop(),
		WithPositionAuthority(authority), WithSelectorClock(fixedClock(&now)))

	selector.Add(newChange("fill1", baseCode, t0, "1", "1"))
	selector.Add(newChange("fill2", baseCode, t0.Add(10*time.Minute), "1", "1"))

	items := selector.GetItemsByTradePlace(testTradePlace)
	assert.Equal(t, []string{"fill1", "fill2"}, fillIDs(items))
	assertDecimal(t, dec("1"), items[1].BalanceChange)
}

func TestPeriodSelector_UnknownBoundaryFillFallsBackToPeriod(t *testing.T) {
	now := t0.Add(2 * time.Hour)
	authority := &authorityStub{}
	authority.set(&domain.PositionChange{ClientOrderFillID: "foreign", ChangeDate: t0, Portion: dec("0.5")})
	selector := NewPeriodSelector(time.Hour, zap.NewNop(),
		WithPositionAuthority(authority), WithSelectorClock(fixedClock(&now)))

	selector.Add(newChange("fill1", baseCode, t0, "1", "1"))
	selector.Add(newChange("fill2", baseCode, t0.Add(90*time.Minute), "1", "1"))

	items := selector.GetItemsByTradePlace(testTradePlace)
	assert.Equal(t, []string{"fill2"}, fillIDs(items))
	assertDecimal(t, dec("1"), items[0].BalanceChange)
}

func TestPeriodSelector_GetItems(t *testing.T) {
	now := t0
	selector := NewPeriodSelector(time.Hour, zap.NewNop(), WithSelectorClock(fixedClock(&now)))

	otherPair := domain.NewCurrencyPair("ETH", quoteCode)
	other := domain.NewProfitLossBalanceChange(testConfig, domain.NewTradePlaceAccount(exchangeAccountID1, otherPair),
		"ETH", "fill9", t0, dec("1"), dec("1"))

	selector.Add(newChange("fill1", baseCode, t0, "1", "1"))
	selector.Add(newChange("fill2", baseCode, t0, "2", "2"))
	selector.Add(other)

	items := selector.GetItems()
	require.Len(t, items, 2)

	byPair := make(map[domain.CurrencyPair][]string)
	for _, tradePlaceItems := range items {
		require.NotEmpty(t, tradePlaceItems)
		byPair[tradePlaceItems[0].CurrencyPair] = fillIDs(tradePlaceItems)
	}
	assert.Equal(t, []string{"fill1", "fill2"}, byPair[testPair])
	assert.Equal(t, []string{"fill9"}, byPair[otherPair])
	assert.ElementsMatch(t, []domain.TradePlaceAccount{testTradePlace, other.TradePlace()}, selector.TradePlaces())
}

func TestPeriodSelector_UnknownTradePlace(t *testing.T) {
	selector := NewPeriodSelector(time.Hour, zap.NewNop())

	assert.Nil(t, selector.Synchronize(t0, testTradePlace))
	assert.Empty(t, selector.GetItemsByTradePlace(testTradePlace))
}

func TestPeriodSelector_LongRunningQueue(t *testing.T) {
	now := t0
	selector := NewPeriodSelector(10*time.Minute, zap.NewNop(), WithSelectorClock(fixedClock(&now)))

	for i := 0; i < 500; i++ {
		now = t0.Add(time.Duration(i) * time.Minute)
		selector.Add(newChange(fmt.Sprintf("fill%d", i), baseCode, now, "1", "1"))
	}

	items := selector.GetItemsByTradePlace(testTradePlace)
	require.Len(t, items, 11)
	assert.Equal(t, "fill489", items[0].ClientOrderFillID)
	assert.Equal(t, "fill499", items[10].ClientOrderFillID)
}
