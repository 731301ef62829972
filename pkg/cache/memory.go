package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
	written  time.Time
}

// MemoryCache implements Service in process. It stores JSON bytes so readers
// never share memory with writers.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]memoryItem
	maxSize int
	now     func() time.Time
}

var _ Service = (*MemoryCache)(nil)

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 10000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{data: make(map[string]memoryItem), maxSize: cfg.MaxSize, now: time.Now}
}

func (mc *MemoryCache) Ping(context.Context) error { return nil }

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := mc.now()

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, exists := mc.data[key]; !exists && len(mc.data) >= mc.maxSize {
		mc.evictOldest()
	}
	item := memoryItem{data: data, written: now}
	if expiration > 0 {
		item.expireAt = now.Add(expiration)
	}
	mc.data[key] = item
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.RLock()
	item, ok := mc.data[key]
	mc.mu.RUnlock()
	if !ok || (!item.expireAt.IsZero() && mc.now().After(item.expireAt)) {
		return ErrCacheMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		delete(mc.data, k)
	}
	return nil
}

func (mc *MemoryCache) evictOldest() {
	var oldest string
	var at time.Time
	for k, it := range mc.data {
		if oldest == "" || it.written.Before(at) {
			oldest, at = k, it.written
		}
	}
	delete(mc.data, oldest)
}
