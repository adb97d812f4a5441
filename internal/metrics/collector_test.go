package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	tp := domain.NewTradePlaceAccount("EXC1_0", domain.NewCurrencyPair("BTC", "USDT"))
	change := domain.NewProfitLossBalanceChange(domain.NewConfigurationDescriptor("svc", "key"), tp, "USDT", "fill1",
		time.Now(), decimal.RequireFromString("-12.5"), decimal.RequireFromString("-12.5"))

	c.EventProcessed("balance_change")
	c.EventProcessed("balance_change")
	c.BalanceChangeRecorded(change)
	c.ConversionFailed("XYZ")
	c.QueueLength(7)
	c.LimitReached(tp)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventsProcessed.WithLabelValues("balance_change")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.changesRecorded.WithLabelValues("EXC1_0", "BTC_USDT", "USDT")))
	assert.Equal(t, 12.5, testutil.ToFloat64(c.usdChange.WithLabelValues("EXC1_0", "BTC_USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.conversionsFailed.WithLabelValues("XYZ")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueLength))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.limitReached.WithLabelValues("EXC1_0", "BTC_USDT")))

	_, err = NewCollector(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}
