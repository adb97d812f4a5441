package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

// HyperliquidPricer fetches mid prices from the Hyperliquid public Info API.
// Mids are quoted in USDC, so only pairs with a USDC quote are supported.
type HyperliquidPricer struct {
	info *hyperliquid.Info
}

func NewHyperliquidPricer(info *hyperliquid.Info) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

func (p *HyperliquidPricer) GetPrice(ctx context.Context, pair domain.CurrencyPair) (decimal.Decimal, error) {
	if pair.Quote != hyperliquidQuote {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "hyperliquid quotes in %s, asked %s", hyperliquidQuote, pair.String())
	}
	if p.info == nil {
		return decimal.Zero, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "hyperliquid all mids")
	}

	// keyed by base coin, e.g. "BTC"
	mid, ok := mids[pair.Base]
	if !ok || mid == "" {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "hyperliquid API returned empty mid price for %s", pair.Base)
	}
	return decimal.NewFromString(mid)
}

const hyperliquidQuote = "USDC"
