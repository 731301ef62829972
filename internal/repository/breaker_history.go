package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	applogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

// BreakerHistory guards a remote HistoryReader with a circuit breaker. While
// the breaker is open, snapshots fail fast and the tick degrades instead of
// waiting on the store.
type BreakerHistory struct {
	next repository.HistoryReader
	cb   *gobreaker.CircuitBreaker
}

var _ repository.HistoryReader = (*BreakerHistory)(nil)

func NewBreakerHistory(next repository.HistoryReader, maxFailures uint32, openTimeout time.Duration, l *applogger.Logger) *BreakerHistory {
	if l == nil {
		l = applogger.Nop()
	}
	st := gobreaker.Settings{
		Name:    "trade-history",
		Timeout: openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &BreakerHistory{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerHistory) Snapshot(ctx context.Context, symbol string, limit int) ([]models.ClosedTrade, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Snapshot(ctx, symbol, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	return out.([]models.ClosedTrade), nil
}

// State reports the breaker state, e.g. for health checks.
func (b *BreakerHistory) State() gobreaker.State {
	return b.cb.State()
}
