// Package config loads the balance tracker configuration from a YAML file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"gopkg.in/yaml.v3"
)

// Price sources.
const (
	PriceSourceBinance     = "binance"
	PriceSourceBybit       = "bybit"
	PriceSourceHyperliquid = "hyperliquid"
	PriceSourceStatic      = "static"
)

const (
	defaultServiceName       = "pnltrack"
	defaultValuationCurrency = "USDT"
	defaultPeriod            = 24 * time.Hour
	defaultTimerInterval     = 5 * time.Second
	defaultQueueCapacity     = 20_000
	defaultWALDir            = "./wal/balance_changes"
	defaultHTTPAddr          = ":8080"
	defaultPriceCacheTTL     = 10 * time.Second
	defaultFillsPath         = "-"
)

// Config is the typed configuration of the tracker.
type Config struct {
	ServiceName             string
	ServiceConfigurationKey string
	ValuationCurrency       string
	Period                  time.Duration
	// LossLimit is positive; zero disables the stopper.
	LossLimit     decimal.Decimal
	TimerInterval time.Duration
	QueueCapacity int
	WALDir        string
	// SQLitePath switches recording from the WAL to SQLite when set.
	SQLitePath    string
	HTTPAddr      string
	// TLSDomains enables ACME certificates for the HTTP server when set.
	TLSDomains    []string
	TLSCacheDir   string
	PriceSource   string
	StaticPrices  map[domain.CurrencyPair]decimal.Decimal
	PriceCacheTTL time.Duration
	ReplayHistory bool
	// FillsPath is a JSON lines file of fills, "-" reads stdin.
	FillsPath string
	Symbols   []SymbolConfig
}

// SymbolConfig describes one pair traded on one exchange account.
type SymbolConfig struct {
	ExchangeAccountID string
	Pair              domain.CurrencyPair
	AmountCurrency    string
}

// Symbol converts the config entry to a domain symbol.
func (s SymbolConfig) Symbol() domain.Symbol {
	symbol := domain.NewSymbol(s.Pair)
	if s.AmountCurrency != "" {
		symbol.AmountCurrencyCode = strings.ToUpper(s.AmountCurrency)
	}
	return symbol
}

// ConfigurationDescriptor returns the descriptor attached to every recorded change.
func (c Config) ConfigurationDescriptor() domain.ConfigurationDescriptor {
	return domain.NewConfigurationDescriptor(c.ServiceName, c.ServiceConfigurationKey)
}

type configTmp struct {
	ServiceName             string            `yaml:"service_name"`
	ServiceConfigurationKey string            `yaml:"service_configuration_key"`
	ValuationCurrency       string            `yaml:"valuation_currency"`
	Period                  time.Duration     `yaml:"period"`
	LossLimit               string            `yaml:"loss_limit"`
	TimerInterval           time.Duration     `yaml:"timer_interval"`
	QueueCapacity           int               `yaml:"queue_capacity"`
	WALDir                  string            `yaml:"wal_dir"`
	SQLitePath              string            `yaml:"sqlite_path"`
	HTTPAddr                *string           `yaml:"http_addr"`
	TLSDomains              []string          `yaml:"tls_domains"`
	TLSCacheDir             string            `yaml:"tls_cache_dir"`
	PriceSource             string            `yaml:"price_source"`
	StaticPrices            map[string]string `yaml:"static_prices"`
	PriceCacheTTL           time.Duration     `yaml:"price_cache_ttl"`
	ReplayHistory           bool              `yaml:"replay_history"`
	FillsPath               string            `yaml:"fills_path"`
	Symbols                 []symbolTmp       `yaml:"symbols"`
}

type symbolTmp struct {
	ExchangeAccountID string `yaml:"exchange_account_id"`
	Pair              string `yaml:"pair"`
	AmountCurrency    string `yaml:"amount_currency"`
}

// Get reads the file named by the --config flag.
func Get() (Config, error) {
	path := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()

	return Load(*path)
}

// Load reads and validates the YAML config at path.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(f)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (Config, error) {
	var tmp configTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, fmt.Errorf("decode yaml config: %w", err)
	}

	c := Config{
		ServiceName:             valueOr(tmp.ServiceName, defaultServiceName),
		ServiceConfigurationKey: tmp.ServiceConfigurationKey,
		ValuationCurrency:       strings.ToUpper(valueOr(tmp.ValuationCurrency, defaultValuationCurrency)),
		Period:                  durationOr(tmp.Period, defaultPeriod),
		LossLimit:               decimal.Zero,
		TimerInterval:           durationOr(tmp.TimerInterval, defaultTimerInterval),
		QueueCapacity:           tmp.QueueCapacity,
		WALDir:                  valueOr(tmp.WALDir, defaultWALDir),
		SQLitePath:              tmp.SQLitePath,
		HTTPAddr:                defaultHTTPAddr,
		TLSDomains:              tmp.TLSDomains,
		TLSCacheDir:             tmp.TLSCacheDir,
		PriceSource:             strings.ToLower(valueOr(tmp.PriceSource, PriceSourceBinance)),
		StaticPrices:            make(map[domain.CurrencyPair]decimal.Decimal, len(tmp.StaticPrices)),
		PriceCacheTTL:           durationOr(tmp.PriceCacheTTL, defaultPriceCacheTTL),
		ReplayHistory:           tmp.ReplayHistory,
		FillsPath:               valueOr(tmp.FillsPath, defaultFillsPath),
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if tmp.HTTPAddr != nil {
		c.HTTPAddr = *tmp.HTTPAddr
	}

	if tmp.LossLimit != "" {
		limit, err := decimal.NewFromString(tmp.LossLimit)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'loss_limit' param in yaml config (must be a decimal), error: %w", err)
		}
		if limit.IsNegative() {
			return Config{}, fmt.Errorf("incorrect 'loss_limit' param in yaml config: %s must not be negative", tmp.LossLimit)
		}
		c.LossLimit = limit
	}

	switch c.PriceSource {
	case PriceSourceBinance, PriceSourceBybit, PriceSourceHyperliquid, PriceSourceStatic:
	default:
		return Config{}, fmt.Errorf("incorrect 'price_source' param in yaml config: %q", tmp.PriceSource)
	}

	for pairStr, priceStr := range tmp.StaticPrices {
		pair, err := domain.ParseCurrencyPair(pairStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'static_prices' pair in yaml config: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'static_prices' price for %s in yaml config, error: %w", pairStr, err)
		}
		c.StaticPrices[pair] = price
	}

	if len(tmp.Symbols) == 0 {
		return Config{}, fmt.Errorf("yaml config has no 'symbols'")
	}
	for _, s := range tmp.Symbols {
		if s.ExchangeAccountID == "" {
			return Config{}, fmt.Errorf("symbol %q has no 'exchange_account_id'", s.Pair)
		}
		pair, err := domain.ParseCurrencyPair(s.Pair)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'pair' param in yaml config: %s, error: %w", s.Pair, err)
		}
		amountCurrency := strings.ToUpper(s.AmountCurrency)
		if amountCurrency != "" && !pair.Contains(amountCurrency) {
			return Config{}, fmt.Errorf("amount currency %s is not a side of %s", amountCurrency, pair.String())
		}
		c.Symbols = append(c.Symbols, SymbolConfig{
			ExchangeAccountID: s.ExchangeAccountID,
			Pair:              pair,
			AmountCurrency:    amountCurrency,
		})
	}

	return c, nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
