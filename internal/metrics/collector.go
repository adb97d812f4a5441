// Package metrics exposes the balance change pipeline as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

const namespace = "pnltrack"

// Collector implements the balance changes service observer on Prometheus.
type Collector struct {
	eventsProcessed   *prometheus.CounterVec
	changesRecorded   *prometheus.CounterVec
	usdChange         *prometheus.CounterVec
	conversionsFailed *prometheus.CounterVec
	queueLength       prometheus.Gauge
	limitReached      *prometheus.GaugeVec
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Events handled by the balance changes loop.",
		}, []string{"kind"}),
		changesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_changes_recorded_total",
			Help:      "Profit/loss balance changes recorded.",
		}, []string{"exchange_account", "pair", "currency"}),
		usdChange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usd_balance_change_abs_total",
			Help:      "Sum of absolute valued balance changes.",
		}, []string{"exchange_account", "pair"}),
		conversionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_failed_total",
			Help:      "Valuations that fell back to zero.",
		}, []string{"currency"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_length",
			Help:      "Events waiting in the balance changes queue.",
		}),
		limitReached: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loss_limit_reached",
			Help:      "1 while the period loss of a trade place exceeds the limit.",
		}, []string{"exchange_account", "pair"}),
	}

	for _, collector := range []prometheus.Collector{
		c.eventsProcessed, c.changesRecorded, c.usdChange, c.conversionsFailed, c.queueLength, c.limitReached,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) EventProcessed(kind string) {
	c.eventsProcessed.WithLabelValues(kind).Inc()
}

func (c *Collector) BalanceChangeRecorded(change domain.ProfitLossBalanceChange) {
	pair := change.CurrencyPair.String()
	c.changesRecorded.WithLabelValues(change.ExchangeAccountID, pair, change.CurrencyCode).Inc()
	usd, _ := change.UsdBalanceChange.Abs().Float64()
	c.usdChange.WithLabelValues(change.ExchangeAccountID, pair).Add(usd)
}

func (c *Collector) ConversionFailed(currencyCode string) {
	c.conversionsFailed.WithLabelValues(currencyCode).Inc()
}

func (c *Collector) QueueLength(n int) {
	c.queueLength.Set(float64(n))
}

// LimitReached flags tp as over the loss limit.
func (c *Collector) LimitReached(tp domain.TradePlaceAccount) {
	c.limitReached.WithLabelValues(tp.ExchangeAccountID, tp.CurrencyPair.String()).Set(1)
}
