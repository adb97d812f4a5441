// Package usdconverter values currency amounts in the valuation currency using exchange prices.
package usdconverter

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"github.com/vadiminshakov/pnltrack/internal/services/pricer"
	"github.com/vadiminshakov/pnltrack/pkg/retrier"
	"go.uber.org/zap"
)

const defaultCacheTTL = 10 * time.Second

// ErrPriceUnavailable means neither the direct nor the inverse pair has a price.
var ErrPriceUnavailable = errors.New("price is unavailable")

type cachedPrice struct {
	price     decimal.Decimal
	expiresAt time.Time
}

// Converter converts amounts of any currency into the valuation currency.
type Converter struct {
	valuationCurrency string
	pricer            pricer.Pricer
	retrier           *retrier.Retrier
	cacheTTL          time.Duration
	logger            *zap.Logger
	now               func() time.Time

	mu    sync.Mutex
	cache map[string]cachedPrice
}

// Option configures a Converter.
type Option func(*Converter)

// WithCacheTTL sets how long a fetched price is reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Converter) {
		c.cacheTTL = ttl
	}
}

// WithRetrier overrides the retry policy of pricer calls.
func WithRetrier(r *retrier.Retrier) Option {
	return func(c *Converter) {
		c.retrier = r
	}
}

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		c.now = now
	}
}

// NewConverter creates a Converter valuing in valuationCurrency, e.g. USDT.
func NewConverter(valuationCurrency string, p pricer.Pricer, logger *zap.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Converter{
		valuationCurrency: valuationCurrency,
		pricer:            p,
		cacheTTL:          defaultCacheTTL,
		logger:            logger.With(zap.String("component", "usd_converter")),
		now:               time.Now,
		cache:             make(map[string]cachedPrice),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.retrier == nil {
		c.retrier = retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(200*time.Millisecond),
			retrier.WithMaxInterval(2*time.Second),
			retrier.WithRetryIf(func(err error) bool { return !errors.Is(err, pricer.ErrNoPrice) }),
			retrier.WithOnRetry(func(attempt int, err error) {
				c.logger.Warn("Retrying price request", zap.Int("attempt", attempt), zap.Error(err))
			}),
		)
	}

	return c
}

// Convert returns amount of currencyCode expressed in the valuation currency.
func (c *Converter) Convert(ctx context.Context, currencyCode string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	if currencyCode == c.valuationCurrency {
		return amount, nil
	}

	price, err := c.price(ctx, currencyCode)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(price), nil
}

// price returns the value of one unit of currencyCode.
func (c *Converter) price(ctx context.Context, currencyCode string) (decimal.Decimal, error) {
	if price, ok := c.cached(currencyCode); ok {
		return price, nil
	}

	direct := domain.NewCurrencyPair(currencyCode, c.valuationCurrency)
	price, err := c.fetch(ctx, direct)
	if err == nil {
		c.store(currencyCode, price)
		return price, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return decimal.Zero, ctxErr
	}
	c.logger.Debug("Direct price unavailable, trying inverse pair",
		zap.String("pair", direct.String()), zap.Error(err))

	inverse := domain.NewCurrencyPair(c.valuationCurrency, currencyCode)
	inversePrice, err := c.fetch(ctx, inverse)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return decimal.Zero, ctxErr
		}
		return decimal.Zero, errors.Wrapf(ErrPriceUnavailable, "%s in %s: %v", currencyCode, c.valuationCurrency, err)
	}

	price = decimal.NewFromInt(1).Div(inversePrice)
	c.store(currencyCode, price)
	return price, nil
}

func (c *Converter) fetch(ctx context.Context, pair domain.CurrencyPair) (decimal.Decimal, error) {
	price, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return c.pricer.GetPrice(ctx, pair)
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Errorf("non-positive price %s for %s", price.String(), pair.String())
	}
	return price, nil
}

func (c *Converter) cached(currencyCode string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[currencyCode]
	if !ok || !c.now().Before(entry.expiresAt) {
		return decimal.Zero, false
	}
	return entry.price, true
}

func (c *Converter) store(currencyCode string, price decimal.Decimal) {
	if c.cacheTTL <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[currencyCode] = cachedPrice{price: price, expiresAt: c.now().Add(c.cacheTTL)}
}
