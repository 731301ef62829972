package confidence

import (
	"math"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

// Engine fuses group scores, regime and drift into one bounded confidence.
// It holds no state; equal inputs always give equal outputs.
type Engine struct {
	weights config.Weights
	cfg     config.ConfidenceConfig
}

func NewEngine(weights config.Weights, cfg config.ConfidenceConfig) *Engine {
	return &Engine{weights: weights, cfg: cfg}
}

func (e *Engine) Compute(g models.GroupScores, r models.RegimeState, d models.DriftState) (models.ConfidenceState, error) {
	for _, c := range models.Categories {
		s := g.Score(c)
		if math.IsNaN(s) || s < 0 || s > 1 {
			return models.ConfidenceState{}, models.NewDataError("group_scores."+string(c), "score %v outside [0,1]", s)
		}
	}
	if math.IsNaN(d.DriftScore) || d.DriftScore < 0 || d.DriftScore > 1 {
		return models.ConfidenceState{}, models.NewDataError("drift_score", "%v outside [0,1]", d.DriftScore)
	}

	raw := 0.0
	for _, c := range models.Categories {
		raw += e.weights.Of(c) * g.Score(c)
	}
	raw = clamp01(raw)

	pr := e.regimePenalty(g, r, raw)
	pd := math.Max(0, 1-e.cfg.Alpha*d.DriftScore)

	st := models.ConfidenceState{
		Raw:           raw,
		Long:          clamp01(raw * pr * pd),
		Short:         clamp01((1 - raw) * pr * pd),
		PenaltyRegime: pr,
		PenaltyDrift:  pd,
	}

	switch {
	case raw >= 0.5+e.cfg.NeutralBand:
		st.Direction = models.DirectionLong
		st.FinalConfidence = st.Long
	case raw <= 0.5-e.cfg.NeutralBand:
		st.Direction = models.DirectionShort
		st.FinalConfidence = st.Short
	default:
		st.Direction = models.DirectionFlat
		st.FinalConfidence = math.Max(st.Long, st.Short)
	}

	st.Components = make(map[models.Category]float64, len(models.Categories))
	for _, c := range models.Categories {
		s := g.Score(c)
		if st.Direction == models.DirectionShort {
			s = 1 - s
		}
		st.Components[c] = s
	}
	return st, nil
}

// regimePenalty discounts trend-following conviction in chop. τ is the weighted
// share of category bias that agrees with the net direction.
func (e *Engine) regimePenalty(g models.GroupScores, r models.RegimeState, raw float64) float64 {
	if r.Primary != models.RegimeChop {
		return 1
	}
	sign := 0.0
	switch {
	case raw > 0.5:
		sign = 1
	case raw < 0.5:
		sign = -1
	}

	var aligned, total float64
	for _, c := range models.Categories {
		w := e.weights.Of(c)
		bias := 2*g.Score(c) - 1
		aligned += w * math.Max(0, sign*bias)
		total += w * math.Abs(bias)
	}
	if total == 0 {
		return 1
	}
	tau := clamp01(aligned / total)
	return 1 - (1-e.cfg.ChopFloor)*tau
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
