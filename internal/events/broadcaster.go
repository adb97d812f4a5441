// Package events fans out recorded balance changes to live subscribers.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/vadiminshakov/pnltrack/internal/domain"
)

const defaultBuffer = 64

// ChangeBroadcaster delivers every recorded balance change to all subscribers
// through buffered channels. It is registered as an accumulator of the service.
type ChangeBroadcaster struct {
	mu      sync.RWMutex
	subs    map[chan domain.ProfitLossBalanceChange]struct{}
	buffer  int
	dropped atomic.Uint64
}

// NewChangeBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewChangeBroadcaster(buffer int) *ChangeBroadcaster {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	return &ChangeBroadcaster{
		subs:   make(map[chan domain.ProfitLossBalanceChange]struct{}),
		buffer: buffer,
	}
}

// AddBalanceChange publishes the change, dropping it for subscribers that lag behind.
func (b *ChangeBroadcaster) AddBalanceChange(change domain.ProfitLossBalanceChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- change:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel that receives changes until Unsubscribe is called.
func (b *ChangeBroadcaster) Subscribe() chan domain.ProfitLossBalanceChange {
	ch := make(chan domain.ProfitLossBalanceChange, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *ChangeBroadcaster) Unsubscribe(ch chan domain.ProfitLossBalanceChange) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (b *ChangeBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *ChangeBroadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
