package usecase

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	drepo "github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	applogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

// ReplayStats summarizes one replay run.
type ReplayStats struct {
	Ticks     int     `json:"ticks"`
	Skipped   int     `json:"skipped"`
	Decisions int     `json:"decisions"`
	Entries   int     `json:"entries"`
	Exits     int     `json:"exits"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Scratches int     `json:"scratches"`
	SumPct    float64 `json:"sum_pct"`
}

type paperFill struct {
	direction  models.Direction
	price      float64
	confidence float64
	regime     models.Regime
}

// Replayer drives the tick processor from a recorded tick stream, fills
// entries and exits at the tick price, and appends closed trades to the ledger
// so the drift detector sees them on later ticks.
type Replayer struct {
	proc        TickSink
	ledger      drepo.TradeLedger
	scratchBand float64
	l           *applogger.Logger

	open map[string]paperFill
}

func NewReplayer(proc TickSink, ledger drepo.TradeLedger, scratchBand float64, l *applogger.Logger) *Replayer {
	if l == nil {
		l = applogger.Nop()
	}
	return &Replayer{
		proc:        proc,
		ledger:      ledger,
		scratchBand: scratchBand,
		l:           l,
		open:        make(map[string]paperFill),
	}
}

// Run reads one JSON SignalContext per line from r and writes every decision
// record as a JSON line to w. Malformed lines are skipped and counted.
func (rp *Replayer) Run(ctx context.Context, r io.Reader, w io.Writer) (ReplayStats, error) {
	var st ReplayStats
	enc := json.NewEncoder(w)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return st, err
		}
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}

		var tick models.SignalContext
		if err := json.Unmarshal(raw, &tick); err != nil {
			st.Skipped++
			rp.l.Warn("skip malformed tick", applogger.Int("line", line), applogger.Error(err))
			continue
		}
		recs, err := rp.proc.Process(ctx, tick)
		if err != nil {
			st.Skipped++
			rp.l.Warn("skip rejected tick", applogger.Int("line", line), applogger.Error(err))
			continue
		}
		st.Ticks++

		for _, rec := range recs {
			st.Decisions++
			if err := rp.fill(ctx, rec, &st); err != nil {
				return st, err
			}
			if err := enc.Encode(rec); err != nil {
				return st, fmt.Errorf("write decision: %w", err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("read ticks: %w", err)
	}
	return st, nil
}

func (rp *Replayer) fill(ctx context.Context, rec models.DecisionRecord, st *ReplayStats) error {
	switch rec.Action {
	case models.ActionEnter:
		st.Entries++
		rp.open[rec.Symbol] = paperFill{
			direction:  rec.Direction,
			price:      rec.Price,
			confidence: rec.Confidence.For(rec.Direction),
			regime:     rec.Regime.Primary,
		}
	case models.ActionExit:
		st.Exits++
		f, ok := rp.open[rec.Symbol]
		if !ok {
			return nil
		}
		delete(rp.open, rec.Symbol)

		t := models.ClosedTrade{
			Ts:              rec.TickTs,
			Symbol:          rec.Symbol,
			Direction:       f.direction,
			EntryConfidence: f.confidence,
			EntryRegime:     f.regime,
			EntryPrice:      f.price,
			ExitPrice:       rec.Price,
		}
		if t.HasPrices() {
			t.RealizedPct = f.direction.Sign() * (rec.Price/f.price - 1)
		}
		t.IsScratch = math.Abs(t.RealizedPct) < rp.scratchBand
		switch {
		case t.IsScratch:
			st.Scratches++
		case t.RealizedPct > 0:
			st.Wins++
		default:
			st.Losses++
		}
		st.SumPct += t.RealizedPct

		if err := rp.ledger.Append(ctx, t); err != nil {
			return fmt.Errorf("append trade: %w", err)
		}
	}
	return nil
}
