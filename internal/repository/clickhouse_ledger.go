package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	pkgch "github.com/saltymaverick/Chloe-alpha-sub002/pkg/clickhouse"
	applogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

// ClickHouseLedger implements TradeLedger backed by a MergeTree table.
type ClickHouseLedger struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ repository.TradeLedger = (*ClickHouseLedger)(nil)

func NewClickHouseLedger(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseLedger {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseLedger{db: ch.DB(), table: table, l: l}
}

// Schema returns the idempotent DDL for the ledger table.
func (s *ClickHouseLedger) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ts               DateTime64(3, 'UTC'),
            symbol           LowCardinality(String),
            direction        LowCardinality(String),
            entry_confidence Float64,
            entry_regime     LowCardinality(String),
            entry_price      Float64,
            exit_price       Float64,
            realized_pct     Float64,
            is_scratch       UInt8
        ) ENGINE = MergeTree
        ORDER BY (symbol, ts)
    `, s.table)}
}

func (s *ClickHouseLedger) Append(ctx context.Context, t models.ClosedTrade) error {
	q := fmt.Sprintf(`INSERT INTO %s (ts, symbol, direction, entry_confidence, entry_regime, entry_price, exit_price, realized_pct, is_scratch) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	scratch := uint8(0)
	if t.IsScratch {
		scratch = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		t.Ts.UTC(),
		t.Symbol,
		string(t.Direction),
		t.EntryConfidence,
		string(t.EntryRegime),
		t.EntryPrice,
		t.ExitPrice,
		t.RealizedPct,
		scratch,
	)
	if err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// Snapshot reads the newest limit trades and returns them oldest first.
func (s *ClickHouseLedger) Snapshot(ctx context.Context, symbol string, limit int) ([]models.ClosedTrade, error) {
	start := time.Now()
	const qtpl = `
        SELECT ts, symbol, direction, entry_confidence, entry_regime, entry_price, exit_price, realized_pct, is_scratch
        FROM %s
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, limit)
	if err != nil {
		s.l.Error("clickhouse snapshot query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("snapshot trades: %w", err)
	}
	defer rows.Close()

	out := make([]models.ClosedTrade, 0, limit)
	for rows.Next() {
		var (
			t                 models.ClosedTrade
			direction, regime string
			scratch           uint8
		)
		if err := rows.Scan(&t.Ts, &t.Symbol, &direction, &t.EntryConfidence, &regime, &t.EntryPrice, &t.ExitPrice, &t.RealizedPct, &scratch); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Direction = models.Direction(direction)
		t.EntryRegime = models.Regime(regime)
		t.IsScratch = scratch == 1
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	s.l.Debug("clickhouse snapshot ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
