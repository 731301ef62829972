package service

import "github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"

// SignalAggregator folds per-signal records into category scores.
type SignalAggregator interface {
	Aggregate(sc models.SignalContext) (models.GroupScores, error)
}

// RegimeClassifier labels market conditions from rolling-window features.
type RegimeClassifier interface {
	Classify(rc models.RegimeContext) (models.RegimeState, error)
}

// DriftDetector estimates degradation from a trade-ledger snapshot.
type DriftDetector interface {
	Compute(trades []models.ClosedTrade) (models.DriftState, error)
}

// ConfidenceEngine fuses the per-tick estimates into a bounded confidence.
type ConfidenceEngine interface {
	Compute(g models.GroupScores, r models.RegimeState, d models.DriftState) (models.ConfidenceState, error)
}

// PositionSizer maps confidence, volatility and drift to a size multiplier.
type PositionSizer interface {
	Compute(c models.ConfidenceState, vol float64, d models.DriftState) (models.SizeResult, error)
}

// RiskGate is the pretrade predicate consulted before every entry.
// A nil error means the entry is allowed.
type RiskGate interface {
	Allow(symbol string, d models.Direction, p models.Pretrade) error
}
