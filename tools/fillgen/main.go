// Command fillgen writes synthetic fills as JSON lines for feeding pnltrack in load tests and demos.
//
// Usage:
//
//	fillgen -n 10000 -rate 200 -pair BTC_USDT | pnltrack --config config.yaml
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pnltrack/internal/domain"
	"github.com/vadiminshakov/pnltrack/internal/feed"
)

func main() {
	var (
		count      int
		rate       int
		pairStr    string
		exchange   string
		startPrice float64
		volatility float64
		amount     float64
		commission float64
		seed       int64
	)

	flag.IntVar(&count, "n", 1000, "number of fills to emit (0 for until interrupted)")
	flag.IntVar(&rate, "rate", 0, "fills per second (0 for as fast as possible)")
	flag.StringVar(&pairStr, "pair", "BTC_USDT", "currency pair, example: BTC_USDT")
	flag.StringVar(&exchange, "exchange", "binance_0", "exchange account id")
	flag.Float64Var(&startPrice, "price", 60000, "start price")
	flag.Float64Var(&volatility, "vol", 0.001, "relative price step per fill")
	flag.Float64Var(&amount, "amount", 0.01, "base amount per fill")
	flag.Float64Var(&commission, "fee", 0.001, "commission rate charged in quote currency")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pair, err := domain.ParseCurrencyPair(pairStr)
	if err != nil {
		logger.Fatal("invalid pair", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tick <-chan time.Time
	if rate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	encoder := json.NewEncoder(out)

	rnd := rand.New(rand.NewSource(seed))
	price := decimal.NewFromFloat(startPrice)
	step := decimal.NewFromFloat(volatility)
	fillAmount := decimal.NewFromFloat(amount)
	feeRate := decimal.NewFromFloat(commission)

	start := time.Now()
	emitted := 0
	for count == 0 || emitted < count {
		if tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
		if ctx.Err() != nil {
			break
		}

		move := step.Mul(decimal.NewFromFloat(rnd.Float64()*2 - 1))
		price = price.Add(price.Mul(move)).Round(2)

		side := "buy"
		if rnd.Intn(2) == 0 {
			side = "sell"
		}

		msg := feed.FillMessage{
			ExchangeAccountID: exchange,
			Pair:              pair,
			ClientOrderID:     uuid.NewString(),
			Side:              side,
			OrderPrice:        price,
			OrderAmount:       fillAmount,
			Fill: feed.FillPayload{
				ClientOrderFillID:      uuid.NewString(),
				ReceiveTime:            time.Now().UTC(),
				Price:                  price,
				Amount:                 fillAmount,
				AmountCurrencyCode:     pair.Base,
				CommissionAmount:       price.Mul(fillAmount).Mul(feeRate).Round(8),
				CommissionCurrencyCode: pair.Quote,
			},
		}
		if err := encoder.Encode(msg); err != nil {
			logger.Fatal("write fill", zap.Error(err))
		}
		emitted++

		if tick != nil {
			_ = out.Flush()
		}
	}

	logger.Info("done",
		zap.Int("fills", emitted),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
		zap.String("last_price", price.String()))
}
