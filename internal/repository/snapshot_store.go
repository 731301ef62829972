package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/cache"
)

// CacheSnapshotStore keeps the latest decision per symbol in a cache.Service
// (Redis in production, memory otherwise).
type CacheSnapshotStore struct {
	c   cache.Service
	ttl time.Duration
}

var _ repository.SnapshotStore = (*CacheSnapshotStore)(nil)

func NewCacheSnapshotStore(c cache.Service, ttl time.Duration) *CacheSnapshotStore {
	return &CacheSnapshotStore{c: c, ttl: ttl}
}

func snapshotKey(symbol string) string {
	return "decision:" + symbol
}

func (s *CacheSnapshotStore) Save(ctx context.Context, rec models.DecisionRecord) error {
	if err := s.c.Set(ctx, snapshotKey(rec.Symbol), rec, s.ttl); err != nil {
		return fmt.Errorf("save snapshot %s: %w", rec.Symbol, err)
	}
	return nil
}

func (s *CacheSnapshotStore) Latest(ctx context.Context, symbol string) (models.DecisionRecord, error) {
	var rec models.DecisionRecord
	if err := s.c.Get(ctx, snapshotKey(symbol), &rec); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.DecisionRecord{}, repository.ErrNotFound
		}
		return models.DecisionRecord{}, fmt.Errorf("load snapshot %s: %w", symbol, err)
	}
	return rec, nil
}
