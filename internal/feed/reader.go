// Package feed reads order fills as JSON lines and hands them to the balance changes service.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"go.uber.org/zap"
)

const maxLineSize = 1 << 20

// Sink receives decoded fills.
type Sink interface {
	AddBalanceChange(cfg domain.ConfigurationDescriptor, order *domain.Order, fill *domain.OrderFill) error
}

// FillMessage is one line of the feed.
type FillMessage struct {
	Configuration     *domain.ConfigurationDescriptor `json:"configuration,omitempty"`
	ExchangeAccountID string                          `json:"exchange_account_id"`
	Pair              domain.CurrencyPair             `json:"pair"`
	ClientOrderID     string                          `json:"client_order_id"`
	Side              string                          `json:"side"`
	OrderPrice        decimal.Decimal                 `json:"order_price"`
	OrderAmount       decimal.Decimal                 `json:"order_amount"`
	Fill              FillPayload                     `json:"fill"`
}

// FillPayload is the execution part of a FillMessage.
type FillPayload struct {
	ClientOrderFillID      string          `json:"client_order_fill_id"`
	ReceiveTime            time.Time       `json:"receive_time"`
	Price                  decimal.Decimal `json:"price"`
	Amount                 decimal.Decimal `json:"amount"`
	AmountCurrencyCode     string          `json:"amount_currency"`
	CommissionAmount       decimal.Decimal `json:"commission"`
	CommissionCurrencyCode string          `json:"commission_currency"`
	Side                   string          `json:"side,omitempty"`
}

// Reader decodes FillMessages and forwards them to a Sink.
type Reader struct {
	sink     Sink
	defaults domain.ConfigurationDescriptor
	logger   *zap.Logger
}

// NewReader creates a Reader. defaults is used for messages without a configuration.
func NewReader(sink Sink, defaults domain.ConfigurationDescriptor, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{sink: sink, defaults: defaults, logger: logger.With(zap.String("component", "fill_feed"))}
}

// Run reads r until EOF or ctx cancellation. Malformed lines are skipped; a sink error stops the feed.
func (r *Reader) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lines := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		lines++

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		cfg, order, fill, err := r.decode(line)
		if err != nil {
			r.logger.Warn("Skipping malformed fill", zap.Int("line", lines), zap.Error(err))
			continue
		}
		if err := r.sink.AddBalanceChange(cfg, order, fill); err != nil {
			return errors.Wrapf(err, "fill at line %d", lines)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read fills")
	}

	r.logger.Info("Fill feed drained", zap.Int("lines", lines))
	return nil
}

func (r *Reader) decode(line []byte) (domain.ConfigurationDescriptor, *domain.Order, *domain.OrderFill, error) {
	var msg FillMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return domain.ConfigurationDescriptor{}, nil, nil, err
	}

	side, err := domain.ParseOrderSide(msg.Side)
	if err != nil {
		return domain.ConfigurationDescriptor{}, nil, nil, err
	}

	fillSide := domain.OrderSideUnknown
	if msg.Fill.Side != "" {
		if fillSide, err = domain.ParseOrderSide(msg.Fill.Side); err != nil {
			return domain.ConfigurationDescriptor{}, nil, nil, err
		}
	}

	cfg := r.defaults
	if msg.Configuration != nil {
		cfg = *msg.Configuration
	}

	receiveTime := msg.Fill.ReceiveTime
	if receiveTime.IsZero() {
		receiveTime = time.Now().UTC()
	}

	order := &domain.Order{
		ClientOrderID:     msg.ClientOrderID,
		ExchangeAccountID: msg.ExchangeAccountID,
		CurrencyPair:      msg.Pair,
		Side:              side,
		Price:             msg.OrderPrice,
		Amount:            msg.OrderAmount,
	}
	fill := &domain.OrderFill{
		ClientOrderFillID:      msg.Fill.ClientOrderFillID,
		ReceiveTime:            receiveTime,
		Price:                  msg.Fill.Price,
		Amount:                 msg.Fill.Amount,
		AmountCurrencyCode:     msg.Fill.AmountCurrencyCode,
		CommissionAmount:       msg.Fill.CommissionAmount,
		CommissionCurrencyCode: msg.Fill.CommissionCurrencyCode,
		Side:                   fillSide,
	}
	return cfg, order, fill, nil
}
