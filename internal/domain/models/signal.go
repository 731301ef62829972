package models

import "time"

// Category groups signals that describe the same market facet.
type Category string

const (
	CategoryFlow           Category = "flow"
	CategoryVolatility     Category = "volatility"
	CategoryMicrostructure Category = "microstructure"
	CategoryCrossAsset     Category = "cross_asset"
)

// Categories is the fixed evaluation order. Every fold over categories uses it so
// floating point sums are reproducible.
var Categories = []Category{
	CategoryFlow,
	CategoryVolatility,
	CategoryMicrostructure,
	CategoryCrossAsset,
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryFlow, CategoryVolatility, CategoryMicrostructure, CategoryCrossAsset:
		return true
	default:
		return false
	}
}

// DirectionProb is the producer's up/down probability split. Up+Down must equal 1.
type DirectionProb struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// SignalRecord is one normalized signal value emitted by the ingestion adapter.
type SignalRecord struct {
	Name          string        `json:"name"`
	Raw           float64       `json:"raw"`
	ZScore        float64       `json:"z_score"`
	DirectionProb DirectionProb `json:"direction_prob"`
	Confidence    float64       `json:"confidence"` // [0,1]
	Drift         float64       `json:"drift"`      // [0,1]
}

// Pretrade carries the venue conditions the risk gate checks before an entry.
type Pretrade struct {
	SpreadBps float64 `json:"spread_bps"`
	LatencyMs float64 `json:"latency_ms"`
}

// SignalContext is the canonical per-tick input for one symbol.
type SignalContext struct {
	Symbol   string                      `json:"symbol" validate:"required"`
	Ts       time.Time                   `json:"ts" validate:"required"`
	Price    float64                     `json:"price" validate:"gte=0"`
	Closes   []float64                   `json:"closes"`
	Signals  map[Category][]SignalRecord `json:"signals" validate:"required"`
	Pretrade Pretrade                    `json:"pretrade"`
}

// GroupScores is the aggregator output: one score per category in [0,1], where
// 0.5 is neutral, above 0.5 bullish and below 0.5 bearish.
type GroupScores struct {
	Scores        map[Category]float64 `json:"scores"`
	ReducedSample map[Category]bool    `json:"reduced_sample,omitempty"`
	Unregistered  int                  `json:"unregistered,omitempty"`
}

// Score returns the score for c, or neutral when the category is absent.
func (g GroupScores) Score(c Category) float64 {
	if v, ok := g.Scores[c]; ok {
		return v
	}
	return 0.5
}
