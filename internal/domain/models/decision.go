package models

import "time"

// Direction is a position side.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionFlat  Direction = "flat"
)

// Opposite returns the other side; flat stays flat.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionFlat
	}
}

// Sign returns +1 for long, -1 for short and 0 for flat.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

// ConfidenceState is the fused, bounded confidence for one tick.
type ConfidenceState struct {
	FinalConfidence float64              `json:"final_confidence"`
	Direction       Direction            `json:"direction"` // flat means no directional signal
	Long            float64              `json:"long"`
	Short           float64              `json:"short"`
	Raw             float64              `json:"raw"`
	Components      map[Category]float64 `json:"components"`
	PenaltyRegime   float64              `json:"penalty_regime"`
	PenaltyDrift    float64              `json:"penalty_drift"`
}

// For returns the confidence that supports side d.
func (c ConfidenceState) For(d Direction) float64 {
	switch d {
	case DirectionLong:
		return c.Long
	case DirectionShort:
		return c.Short
	default:
		return 0
	}
}

// SizeResult is the sizer output. Multiplier is exactly 0 when ZeroSize is set.
type SizeResult struct {
	Multiplier  float64 `json:"multiplier"`
	Base        float64 `json:"base"`
	VolScale    float64 `json:"vol_scale"`
	DriftScale  float64 `json:"drift_scale"`
	ZeroSize    bool    `json:"zero_size,omitempty"`
	VolFallback bool    `json:"vol_fallback,omitempty"`
}

// PositionState is the single open (or flat) position of one symbol.
type PositionState struct {
	Symbol          string    `json:"symbol"`
	Direction       Direction `json:"direction"`
	EntryConfidence float64   `json:"entry_confidence"`
	EntryRegime     Regime    `json:"entry_regime"`
	EntryTs         time.Time `json:"entry_ts"`
	EntryPrice      float64   `json:"entry_price,omitempty"`
	BarsOpen        int       `json:"bars_open"`
	SizeMultiplier  float64   `json:"size_multiplier"`
	RiskR           float64   `json:"risk_r"`
}

// IsOpen reports whether the position holds exposure.
func (p PositionState) IsOpen() bool {
	return p.Direction == DirectionLong || p.Direction == DirectionShort
}

// Action is what the engine asks the execution side to do.
type Action string

const (
	ActionEnter Action = "enter"
	ActionExit  Action = "exit"
	ActionHold  Action = "hold"
)

// Reason is the enumerable audit code attached to every decision.
type Reason string

const (
	ReasonEntry         Reason = "entry"
	ReasonHeld          Reason = "held"
	ReasonNoDirection   Reason = "no_direction"
	ReasonLowConfidence Reason = "low_confidence"
	ReasonHighDrift     Reason = "high_drift"
	ReasonZeroSize      Reason = "zero_size"
	ReasonRiskBlocked   Reason = "risk_blocked"
	ReasonDataError     Reason = "data_error"
	ReasonAlreadyOpen   Reason = "already_open"
	ReasonOppositeOpen  Reason = "opposite_open"
	ReasonNoPosition    Reason = "no_position"
	ReasonStopLoss      Reason = "sl"
	ReasonTakeProfit    Reason = "tp"
	ReasonFlip          Reason = "flip"
	ReasonDrop          Reason = "drop"
	ReasonDecay         Reason = "decay"
	ReasonManual        Reason = "manual"
)

// Decision is one engine event. A flip with re-entry yields two per tick.
type Decision struct {
	Action         Action    `json:"action"`
	Direction      Direction `json:"direction"`
	SizeMultiplier float64   `json:"size_multiplier"`
	Reason         Reason    `json:"reason_code"`
	BarsOpen       int       `json:"bars_open,omitempty"`
}

// DecisionRecord is the output handed to the execution collaborator.
type DecisionRecord struct {
	ID             string          `json:"id"`
	TickTs         time.Time       `json:"tick_ts"`
	Symbol         string          `json:"symbol"`
	Seq            int             `json:"seq"`
	Action         Action          `json:"action"`
	Direction      Direction       `json:"direction"`
	SizeMultiplier float64         `json:"size_multiplier"`
	Reason         Reason          `json:"reason_code"`
	Price          float64         `json:"price,omitempty"`
	Confidence     ConfidenceState `json:"confidence_state"`
	Regime         RegimeState     `json:"regime_state"`
	Drift          DriftState      `json:"drift_state"`
	Size           SizeResult      `json:"size"`
	Error          string          `json:"error,omitempty"`
}
