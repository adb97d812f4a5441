// Package balancechanges persists profit/loss balance changes in a write-ahead log.
package balancechanges

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
)

const (
	defaultChangesDir  = "./wal/balance_changes"
	changeSegmentLimit = 1000
	changeMaxSegments  = 100
	changeKeyPrefix    = "pnl_change_"
)

var errNotInitialized = errors.New("balance change store is not initialized")

// WALStore records balance changes in a WAL and replays them on restart.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens or creates a WAL-backed change store under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultChangesDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "changes_",
		SegmentThreshold: changeSegmentLimit,
		MaxSegments:      changeMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init balance changes WAL")
	}

	return &WALStore{wal: wal}, nil
}

func changeKey(change domain.ProfitLossBalanceChange) string {
	return fmt.Sprintf("%s%s_%s", changeKeyPrefix, change.TradePlace().String(), change.CurrencyCode)
}

// Save appends the change to the WAL.
func (s *WALStore) Save(change domain.ProfitLossBalanceChange) error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}
	if change.ClientOrderFillID == "" {
		return errors.New("balance change client order fill id is required")
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "marshal balance change")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, changeKey(change), payload)
}

// ChangesAfter returns all changes written after the provided WAL index.
func (s *WALStore) ChangesAfter(index uint64) ([]domain.ProfitLossBalanceChangeRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.ProfitLossBalanceChangeRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		// indices of segments the WAL already rotated out are not readable any more
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, changeKeyPrefix) {
			continue
		}
		var change domain.ProfitLossBalanceChange
		if err := json.Unmarshal(payload, &change); err != nil {
			return nil, errors.Wrapf(err, "decode balance change at %d", idx)
		}
		records = append(records, domain.ProfitLossBalanceChangeRecord{
			Index:  idx,
			Change: change,
		})
	}

	return records, nil
}

// LoadSince returns changes dated at or after since in write order.
func (s *WALStore) LoadSince(since time.Time) ([]domain.ProfitLossBalanceChange, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var changes []domain.ProfitLossBalanceChange
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, changeKeyPrefix) {
			continue
		}
		var change domain.ProfitLossBalanceChange
		if err := json.Unmarshal(msg.Value, &change); err != nil {
			return nil, errors.Wrap(err, "decode balance change")
		}
		if change.ChangeDate.Before(since) {
			continue
		}
		changes = append(changes, change)
	}

	return changes, nil
}

// ByTradePlace returns changes of one trade place dated at or after since.
func (s *WALStore) ByTradePlace(ctx context.Context, tp domain.TradePlaceAccount, since time.Time) ([]domain.ProfitLossBalanceChange, error) {
	changes, err := s.LoadSince(since)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []domain.ProfitLossBalanceChange
	for _, change := range changes {
		if change.TradePlace() == tp {
			result = append(result, change)
		}
	}
	return result, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
