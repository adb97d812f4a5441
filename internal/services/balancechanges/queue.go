package balancechanges

import "github.com/vadiminshakov/pnltrack/internal/domain"

const queueCompactThreshold = 64

// changeQueue is an oldest-first queue of balance changes.
type changeQueue struct {
	items []domain.ProfitLossBalanceChange
	head  int
}

func (q *changeQueue) pushBack(change domain.ProfitLossBalanceChange) {
	q.items = append(q.items, change)
}

func (q *changeQueue) front() (domain.ProfitLossBalanceChange, bool) {
	if q.len() == 0 {
		return domain.ProfitLossBalanceChange{}, false
	}
	return q.items[q.head], true
}

func (q *changeQueue) popFront() {
	if q.len() == 0 {
		return
	}
	q.items[q.head] = domain.ProfitLossBalanceChange{}
	q.head++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head >= queueCompactThreshold && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0:0], q.items[q.head:]...)
		q.head = 0
	}
}

func (q *changeQueue) len() int {
	return len(q.items) - q.head
}

func (q *changeQueue) containsFill(clientOrderFillID string) bool {
	for _, change := range q.items[q.head:] {
		if change.ClientOrderFillID == clientOrderFillID {
			return true
		}
	}
	return false
}

func (q *changeQueue) snapshot() []domain.ProfitLossBalanceChange {
	return append([]domain.ProfitLossBalanceChange(nil), q.items[q.head:]...)
}
