package models

// Regime is a discrete market-condition label.
type Regime string

const (
	RegimeTrendUp     Regime = "trend_up"
	RegimeTrendDown   Regime = "trend_down"
	RegimeChop        Regime = "chop"
	RegimeHighVol     Regime = "high_vol"
	RegimeExpansion   Regime = "expansion"
	RegimeContraction Regime = "contraction"

	// RegimeUnknown tags trades recorded without a classification.
	RegimeUnknown Regime = "unknown"
)

// Regimes lists the classifiable regimes. Ties in scoring resolve in this order,
// so chop (the conservative default) wins a tie.
var Regimes = []Regime{
	RegimeChop,
	RegimeTrendUp,
	RegimeTrendDown,
	RegimeHighVol,
	RegimeExpansion,
	RegimeContraction,
}

// IsValid reports whether r is a classifiable regime.
func (r Regime) IsValid() bool {
	for _, x := range Regimes {
		if x == r {
			return true
		}
	}
	return false
}

// IsTrend reports whether r is a directional trend regime.
func (r Regime) IsTrend() bool {
	return r == RegimeTrendUp || r == RegimeTrendDown
}

// RegimeContext holds the rolling-window features the classifier scores.
type RegimeContext struct {
	Observations        int     `json:"observations"`
	TrendSlope          float64 `json:"trend_slope"`          // fitted log-price slope per bar
	TrendR2             float64 `json:"trend_r2"`             // [0,1]
	VolPercentile       float64 `json:"vol_percentile"`       // [0,1]
	BandWidthPercentile float64 `json:"bandwidth_percentile"` // [0,1]
	RealizedVol         float64 `json:"realized_vol"`         // per-bar std dev of log returns
}

// RegimeState is the classifier output for one tick.
type RegimeState struct {
	Primary          Regime             `json:"primary"`
	Secondary        []Regime           `json:"secondary,omitempty"`
	Scores           map[Regime]float64 `json:"scores"`
	LowConfidence    bool               `json:"low_confidence,omitempty"`
	InsufficientData bool               `json:"insufficient_data,omitempty"`
}

// Warning returns an InsufficientHistoryError when the state was defaulted.
func (s RegimeState) Warning() error {
	if !s.InsufficientData {
		return nil
	}
	return &InsufficientHistoryError{Component: "regime"}
}
