package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionChange marks the fill at which a tracked position most recently crossed through flat.
type PositionChange struct {
	ClientOrderFillID string          `json:"client_order_fill_id"`
	ChangeDate        time.Time       `json:"change_date"`
	// Portion is the (0,1] fraction of the fill that belongs to the current position.
	Portion decimal.Decimal `json:"portion"`
}

// NewPositionChange creates a PositionChange.
func NewPositionChange(clientOrderFillID string, changeDate time.Time, portion decimal.Decimal) PositionChange {
	return PositionChange{
		ClientOrderFillID: clientOrderFillID,
		ChangeDate:        changeDate.UTC(),
		Portion:           portion,
	}
}
