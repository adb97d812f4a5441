// Package internal wires exchange clients into the services of the tracker.
package internal

import (
	"fmt"
	"os"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/pnltrack/config"
	"github.com/vadiminshakov/pnltrack/internal/clients"
	"github.com/vadiminshakov/pnltrack/internal/services/pricer"
)

// NewPriceClient builds the exchange client of the configured price source.
func NewPriceClient(cfg config.Config) (any, error) {
	switch cfg.PriceSource {
	case config.PriceSourceBinance:
		return clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")), nil
	case config.PriceSourceBybit:
		return clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET")), nil
	case config.PriceSourceHyperliquid:
		key := os.Getenv("HYPERLIQUID_PRIVATE_KEY")
		if key == "" {
			return nil, errors.New("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
		return clients.NewHyperliquidClient(key, os.Getenv("HYPERLIQUID_BASE_URL"))
	case config.PriceSourceStatic:
		return pricer.NewStaticPricer(cfg.StaticPrices), nil
	default:
		return nil, fmt.Errorf("unsupported price source: %s", cfg.PriceSource)
	}
}

// NewPricer dispatches a client to its pricer implementation.
func NewPricer(client any) (pricer.Pricer, error) {
	switch c := client.(type) {
	case *binance.Client:
		return pricer.NewBinancePricer(c), nil
	case *bybit.Client:
		return pricer.NewBybitPricer(c), nil
	case *clients.HyperliquidClient:
		return pricer.NewHyperliquidPricer(c.Info()), nil
	case pricer.Pricer:
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}
