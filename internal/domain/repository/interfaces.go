package repository

import (
	"context"
	"errors"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
)

// ErrNotFound is returned when a store holds nothing for the requested key.
var ErrNotFound = errors.New("not found")

// HistoryReader returns a consistent snapshot of closed trades, oldest first.
// The snapshot is taken once per tick; concurrent appends never show up mid-tick.
type HistoryReader interface {
	Snapshot(ctx context.Context, symbol string, limit int) ([]models.ClosedTrade, error)
}

// TradeLedger is the append-only source of closed trades.
type TradeLedger interface {
	HistoryReader
	Append(ctx context.Context, t models.ClosedTrade) error
}

// DecisionPublisher hands decision records to the execution collaborator.
type DecisionPublisher interface {
	Publish(ctx context.Context, recs []models.DecisionRecord) error
	Close() error
}

// SnapshotStore keeps the latest decision record per symbol.
type SnapshotStore interface {
	Save(ctx context.Context, rec models.DecisionRecord) error
	Latest(ctx context.Context, symbol string) (models.DecisionRecord, error)
}

type Metrics interface {
	RecordDecision(rec models.DecisionRecord)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
