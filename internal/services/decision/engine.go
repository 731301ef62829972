package decision

import (
	"time"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/service"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

// TickInput is everything the state machine looks at for one tick.
type TickInput struct {
	Ts         time.Time
	Price      float64
	Confidence models.ConfidenceState
	Regime     models.RegimeState
	Drift      models.DriftState
	Size       models.SizeResult
	Pretrade   models.Pretrade
}

// Engine is the entry/exit state machine of a single symbol. It is not safe for
// concurrent use; callers serialize ticks per symbol.
type Engine struct {
	symbol string
	cfg    config.DecisionConfig
	gate   service.RiskGate
	pos    models.PositionState
}

// NewEngine returns a flat engine. A nil gate allows every entry.
func NewEngine(symbol string, cfg config.DecisionConfig, gate service.RiskGate) *Engine {
	return &Engine{
		symbol: symbol,
		cfg:    cfg,
		gate:   gate,
		pos:    models.PositionState{Symbol: symbol, Direction: models.DirectionFlat},
	}
}

// State returns a copy of the current position.
func (e *Engine) State() models.PositionState {
	return e.pos
}

// Step advances the machine by one tick. It returns one decision, or two when a
// flip closes the position and re-enters the other side.
func (e *Engine) Step(in TickInput) []models.Decision {
	if !e.pos.IsOpen() {
		return []models.Decision{e.tryEnter(in, in.Confidence.Direction)}
	}

	t := e.cfg.For(in.Regime.Primary)
	side := e.pos.Direction
	same := in.Confidence.For(side)
	opp := in.Confidence.For(side.Opposite())
	bars := e.pos.BarsOpen

	if opp >= t.StopLossConf {
		return []models.Decision{e.close(models.ReasonStopLoss)}
	}
	if bars >= t.MinHoldBars {
		if same >= t.TakeProfitConf {
			return []models.Decision{e.close(models.ReasonTakeProfit)}
		}
		if opp >= t.ReverseMinConf {
			out := []models.Decision{e.close(models.ReasonFlip)}
			if d := e.tryEnter(in, side.Opposite()); d.Action == models.ActionEnter {
				out = append(out, d)
			}
			return out
		}
		if same < t.ExitMinConfidence {
			return []models.Decision{e.close(models.ReasonDrop)}
		}
	}
	if bars >= t.DecayBars {
		return []models.Decision{e.close(models.ReasonDecay)}
	}

	e.pos.BarsOpen++
	return []models.Decision{e.hold(models.ReasonHeld)}
}

// Enter requests an entry on side d outside the regular tick flow. Entering the
// side already held, or the other side while open, is a no-op hold.
func (e *Engine) Enter(in TickInput, d models.Direction) models.Decision {
	if e.pos.IsOpen() {
		if e.pos.Direction == d {
			return e.hold(models.ReasonAlreadyOpen)
		}
		return e.hold(models.ReasonOppositeOpen)
	}
	return e.tryEnter(in, d)
}

// Exit closes the open position. Exiting while flat changes nothing.
func (e *Engine) Exit(reason models.Reason) models.Decision {
	if !e.pos.IsOpen() {
		return e.hold(models.ReasonNoPosition)
	}
	return e.close(reason)
}

// Degrade records a tick whose inputs could not be computed. The position is
// kept and still ages.
func (e *Engine) Degrade() models.Decision {
	if e.pos.IsOpen() {
		e.pos.BarsOpen++
	}
	return e.hold(models.ReasonDataError)
}

// tryEnter runs the entry gates in order and opens on side d when all pass.
func (e *Engine) tryEnter(in TickInput, d models.Direction) models.Decision {
	t := e.cfg.For(in.Regime.Primary)
	switch {
	case d == models.DirectionFlat || d != in.Confidence.Direction:
		return e.hold(models.ReasonNoDirection)
	case in.Confidence.For(d) < t.EntryMinConfidence:
		return e.hold(models.ReasonLowConfidence)
	case in.Drift.DriftScore > e.cfg.MaxDriftForEntries:
		return e.hold(models.ReasonHighDrift)
	case in.Size.ZeroSize || in.Size.Multiplier <= 0:
		return e.hold(models.ReasonZeroSize)
	case !e.cfg.AllowOpens:
		return e.hold(models.ReasonRiskBlocked)
	}
	if e.gate != nil {
		if err := e.gate.Allow(e.symbol, d, in.Pretrade); err != nil {
			return e.hold(models.ReasonRiskBlocked)
		}
	}

	e.pos = models.PositionState{
		Symbol:          e.symbol,
		Direction:       d,
		EntryConfidence: in.Confidence.For(d),
		EntryRegime:     in.Regime.Primary,
		EntryTs:         in.Ts,
		EntryPrice:      in.Price,
		SizeMultiplier:  in.Size.Multiplier,
		RiskR:           in.Size.Multiplier,
	}
	return models.Decision{
		Action:         models.ActionEnter,
		Direction:      d,
		SizeMultiplier: in.Size.Multiplier,
		Reason:         models.ReasonEntry,
	}
}

func (e *Engine) close(reason models.Reason) models.Decision {
	d := models.Decision{
		Action:         models.ActionExit,
		Direction:      e.pos.Direction,
		SizeMultiplier: e.pos.SizeMultiplier,
		Reason:         reason,
		BarsOpen:       e.pos.BarsOpen,
	}
	e.pos = models.PositionState{Symbol: e.symbol, Direction: models.DirectionFlat}
	return d
}

func (e *Engine) hold(reason models.Reason) models.Decision {
	return models.Decision{
		Action:         models.ActionHold,
		Direction:      e.pos.Direction,
		SizeMultiplier: e.pos.SizeMultiplier,
		Reason:         reason,
		BarsOpen:       e.pos.BarsOpen,
	}
}
