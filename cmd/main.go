// Command pnltrack tracks realized profit/loss of trading fills per exchange account
// and currency pair, and requests a stop when the loss over the period exceeds the limit.
//
// Usage:
//
//	pnltrack --config config.yaml < fills.jsonl
//
// Optional environment variables:
//
//	For Binance prices: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit prices: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid prices: HYPERLIQUID_PRIVATE_KEY, HYPERLIQUID_BASE_URL
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/pnltrack/config"
	"github.com/vadiminshakov/pnltrack/internal"
	"github.com/vadiminshakov/pnltrack/internal/clients"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"github.com/vadiminshakov/pnltrack/internal/events"
	"github.com/vadiminshakov/pnltrack/internal/feed"
	"github.com/vadiminshakov/pnltrack/internal/lifecycle"
	"github.com/vadiminshakov/pnltrack/internal/metrics"
	"github.com/vadiminshakov/pnltrack/internal/services/balancechanges"
	"github.com/vadiminshakov/pnltrack/internal/services/position"
	"github.com/vadiminshakov/pnltrack/internal/services/symbols"
	"github.com/vadiminshakov/pnltrack/internal/services/usdconverter"
	walstore "github.com/vadiminshakov/pnltrack/internal/storage/balancechanges"
	"github.com/vadiminshakov/pnltrack/internal/storage/sqlstore"
	"github.com/vadiminshakov/pnltrack/internal/web"
)

type store interface {
	balancechanges.Recorder
	balancechanges.HistoryLoader
	ByTradePlace(ctx context.Context, tp domain.TradePlaceAccount, since time.Time) ([]domain.ProfitLossBalanceChange, error)
	Close() error
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("pnltrack stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("pnltrack stopped")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lifetime := lifecycle.NewManager(ctx, logger)

	symbolProvider := symbols.NewProvider()
	for _, s := range cfg.Symbols {
		symbolProvider.Register(s.ExchangeAccountID, s.Symbol())
	}

	client, err := internal.NewPriceClient(cfg)
	if err != nil {
		return errors.Wrap(err, "create price client")
	}
	if hl, ok := client.(*clients.HyperliquidClient); ok {
		logger.Info("Hyperliquid prices", zap.String("account", hl.AccountAddress()))
	}
	p, err := internal.NewPricer(client)
	if err != nil {
		return errors.Wrap(err, "create pricer")
	}
	converter := usdconverter.NewConverter(cfg.ValuationCurrency, p, logger,
		usdconverter.WithCacheTTL(cfg.PriceCacheTTL))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return errors.Wrap(err, "register metrics")
	}

	tracker := position.NewTracker(logger)
	broadcaster := events.NewChangeBroadcaster(256)

	onLimit := func(_ context.Context, tp domain.TradePlaceAccount, usdProfitLoss decimal.Decimal) {
		collector.LimitReached(tp)
		lifetime.RequestStop(fmt.Sprintf("loss limit reached on %s: %s %s",
			tp.String(), usdProfitLoss.String(), cfg.ValuationCurrency))
	}
	stopper := balancechanges.NewProfitLossStopperService(cfg.LossLimit, cfg.Period, logger, onLimit,
		balancechanges.WithPositionAuthority(tracker))

	changes, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := changes.Close(); err != nil {
			logger.Warn("failed to close balance changes store", zap.Error(err))
		}
	}()

	opts := []balancechanges.Option{
		balancechanges.WithAccumulators(tracker, broadcaster),
		balancechanges.WithTimerInterval(cfg.TimerInterval),
		balancechanges.WithQueueCapacity(cfg.QueueCapacity),
		balancechanges.WithMetrics(collector),
	}
	if cfg.ReplayHistory {
		opts = append(opts, balancechanges.WithHistory(changes, cfg.Period))
	}
	service := balancechanges.NewService(symbolProvider, stopper, converter, lifetime, changes, logger, opts...)

	input, err := openFills(cfg.FillsPath)
	if err != nil {
		return err
	}
	defer input.Close()

	g, gctx := errgroup.WithContext(lifetime.StopToken())
	g.Go(func() error {
		return service.Run(gctx)
	})

	if cfg.HTTPAddr != "" {
		sources := web.Sources{
			Window:     stopper.Selector(),
			ProfitLoss: stopper,
			Converter:  converter,
			Positions:  tracker,
			Stream:     broadcaster,
			History:    changes,
			Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}
		if wal, ok := changes.(*walstore.WALStore); ok {
			sources.Log = wal
		}
		server := web.NewServer(cfg.HTTPAddr, logger, sources)
		g.Go(func() error {
			if len(cfg.TLSDomains) > 0 {
				return server.StartWithAutoTLS(gctx, cfg.TLSDomains, cfg.TLSCacheDir)
			}
			return server.Start(gctx)
		})
	}

	// not part of the group: a blocked stdin read must not hold up shutdown
	go func() {
		reader := feed.NewReader(service, cfg.ConfigurationDescriptor(), logger)
		if err := reader.Run(gctx, input); err != nil {
			lifetime.Fatal(err)
		}
	}()

	logger.Info("pnltrack started",
		zap.String("price_source", cfg.PriceSource),
		zap.Duration("period", cfg.Period),
		zap.Stringer("loss_limit", cfg.LossLimit),
		zap.Int("symbols", len(cfg.Symbols)))

	err = g.Wait()
	if fatal := lifetime.Err(); fatal != nil {
		return fatal
	}
	return err
}

func openStore(cfg config.Config) (store, error) {
	if cfg.SQLitePath != "" {
		s, err := sqlstore.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite store")
		}
		return s, nil
	}

	s, err := walstore.NewWALStore(cfg.WALDir)
	if err != nil {
		return nil, errors.Wrap(err, "open WAL store")
	}
	return s, nil
}

func openFills(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open fills")
	}
	return f, nil
}
