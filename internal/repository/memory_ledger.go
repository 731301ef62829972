package repository

import (
	"context"
	"sync"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
)

// MemoryLedger is an append-only in-process trade ledger.
type MemoryLedger struct {
	mu     sync.RWMutex
	trades map[string][]models.ClosedTrade
}

var _ repository.TradeLedger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{trades: make(map[string][]models.ClosedTrade)}
}

func (l *MemoryLedger) Append(_ context.Context, t models.ClosedTrade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades[t.Symbol] = append(l.trades[t.Symbol], t)
	return nil
}

// Snapshot copies the last limit trades of symbol, oldest first.
func (l *MemoryLedger) Snapshot(_ context.Context, symbol string, limit int) ([]models.ClosedTrade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := l.trades[symbol]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.ClosedTrade, len(all))
	copy(out, all)
	return out, nil
}
