package models

import "time"

// DriftTrend describes how the drift estimate is moving across the window.
type DriftTrend string

const (
	DriftImproving        DriftTrend = "improving"
	DriftStable           DriftTrend = "stable"
	DriftDegrading        DriftTrend = "degrading"
	DriftInsufficientData DriftTrend = "insufficient_data"
)

// DriftState estimates how far the confidence/return relationship has degraded.
type DriftState struct {
	DriftScore           float64    `json:"drift_score"`
	PFLocal              float64    `json:"pf_local"`
	ConfidenceReturnCorr float64    `json:"confidence_return_corr"`
	Trend                DriftTrend `json:"trend"`
	Samples              int        `json:"samples"`
	Discarded            int        `json:"discarded,omitempty"`
	ScratchOnly          bool       `json:"scratch_only,omitempty"`
	InsufficientData     bool       `json:"insufficient_data,omitempty"`
}

// Warning returns an InsufficientHistoryError when neutral defaults were used.
func (s DriftState) Warning() error {
	if !s.InsufficientData {
		return nil
	}
	return &InsufficientHistoryError{Component: "drift", Have: s.Samples}
}

// ClosedTrade is one record of the append-only trade ledger.
type ClosedTrade struct {
	Ts              time.Time `json:"ts"`
	Symbol          string    `json:"symbol"`
	Direction       Direction `json:"direction"`
	EntryConfidence float64   `json:"entry_confidence"`
	EntryRegime     Regime    `json:"entry_regime"`
	EntryPrice      float64   `json:"entry_price"` // 0 when missing
	ExitPrice       float64   `json:"exit_price"`  // 0 when missing
	RealizedPct     float64   `json:"realized_pct"`
	IsScratch       bool      `json:"is_scratch"`
}

// HasPrices reports whether both fill prices were recorded.
func (t ClosedTrade) HasPrices() bool {
	return t.EntryPrice > 0 && t.ExitPrice > 0
}

// IsGhost reports whether the record must be ignored by every statistic.
func (t ClosedTrade) IsGhost() bool {
	if !t.HasPrices() {
		return true
	}
	if t.EntryRegime == "" || t.EntryRegime == RegimeUnknown {
		return true
	}
	return false
}
