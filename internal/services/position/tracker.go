// Package position tracks net base-currency positions per trade place and
// remembers where each position last crossed through flat.
package position

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"go.uber.org/zap"
)

// maxBoundaries bounds the remembered flat crossings per trade place.
const maxBoundaries = 1024

type book struct {
	position   decimal.Decimal
	boundaries []domain.PositionChange
}

// Tracker accumulates base-currency balance changes into positions.
// It serves as the position authority of the period selector.
type Tracker struct {
	logger *zap.Logger

	mu    sync.Mutex
	books map[domain.TradePlaceAccount]*book
}

// NewTracker creates an empty Tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		logger: logger.With(zap.String("component", "position_tracker")),
		books:  make(map[domain.TradePlaceAccount]*book),
	}
}

// AddBalanceChange applies a change to the position of its trade place.
// Only changes of the pair's base currency move the position.
func (t *Tracker) AddBalanceChange(change domain.ProfitLossBalanceChange) {
	if change.CurrencyCode != change.CurrencyPair.Base || change.BalanceChange.IsZero() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tp := change.TradePlace()
	b, ok := t.books[tp]
	if !ok {
		b = &book{}
		t.books[tp] = b
	}

	before := b.position
	after := before.Add(change.BalanceChange)
	b.position = after

	var portion decimal.Decimal
	switch {
	case after.IsZero():
		// closed exactly, the next opening fill starts the position
		return
	case before.IsZero():
		portion = decimal.NewFromInt(1)
	case before.Sign() != after.Sign():
		portion = after.Abs().Div(change.BalanceChange.Abs())
	default:
		return
	}

	b.boundaries = append(b.boundaries, domain.NewPositionChange(change.ClientOrderFillID, change.ChangeDate, portion))
	if len(b.boundaries) > maxBoundaries {
		b.boundaries = append([]domain.PositionChange(nil), b.boundaries[len(b.boundaries)-maxBoundaries:]...)
	}

	t.logger.Debug("Position opened",
		zap.Stringer("trade_place", tp),
		zap.String("client_order_fill_id", change.ClientOrderFillID),
		zap.String("position", after.String()),
		zap.String("portion", portion.String()))
}

// LastPositionChangeBefore returns the latest flat crossing strictly before instant, nil if none.
func (t *Tracker) LastPositionChangeBefore(tp domain.TradePlaceAccount, instant time.Time) *domain.PositionChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.books[tp]
	if !ok {
		return nil
	}

	i := sort.Search(len(b.boundaries), func(i int) bool {
		return !b.boundaries[i].ChangeDate.Before(instant)
	})
	if i == 0 {
		return nil
	}
	change := b.boundaries[i-1]
	return &change
}

// Position returns the current net base-currency position of tp.
func (t *Tracker) Position(tp domain.TradePlaceAccount) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.books[tp]; ok {
		return b.position
	}
	return decimal.Zero
}

// TradePlaces returns every trade place with a tracked position.
func (t *Tracker) TradePlaces() []domain.TradePlaceAccount {
	t.mu.Lock()
	defer t.mu.Unlock()

	places := make([]domain.TradePlaceAccount, 0, len(t.books))
	for tp := range t.books {
		places = append(places, tp)
	}
	sort.Slice(places, func(i, j int) bool {
		return places[i].String() < places[j].String()
	})
	return places
}
