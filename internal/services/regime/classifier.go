package regime

import (
	"math"
	"sort"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

// Classifier labels the market with one primary regime and any notable secondary ones.
type Classifier struct {
	cfg config.RegimeConfig
}

func NewClassifier(cfg config.RegimeConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify scores every regime from rc. The returned scores always sum to 1.
func (c *Classifier) Classify(rc models.RegimeContext) (models.RegimeState, error) {
	for name, v := range map[string]float64{
		"trend_slope":          rc.TrendSlope,
		"trend_r2":             rc.TrendR2,
		"vol_percentile":       rc.VolPercentile,
		"bandwidth_percentile": rc.BandWidthPercentile,
		"realized_vol":         rc.RealizedVol,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.RegimeState{}, models.NewDataError(name, "not finite")
		}
	}

	if rc.Observations < c.cfg.MinObservations {
		return models.RegimeState{
			Primary:          models.RegimeChop,
			Scores:           map[models.Regime]float64{models.RegimeChop: 1},
			LowConfidence:    true,
			InsufficientData: true,
		}, nil
	}

	raw := c.rawScores(rc)

	total := 0.0
	for _, r := range models.Regimes {
		total += raw[r]
	}
	scores := make(map[models.Regime]float64, len(models.Regimes))
	for _, r := range models.Regimes {
		scores[r] = raw[r] / total
	}

	primary := models.Regimes[0]
	for _, r := range models.Regimes[1:] {
		if scores[r] > scores[primary] {
			primary = r
		}
	}

	var secondary []models.Regime
	for _, r := range models.Regimes {
		if r != primary && scores[r] >= c.cfg.SecondaryMin {
			secondary = append(secondary, r)
		}
	}
	// stable keeps tie order from models.Regimes
	sort.SliceStable(secondary, func(i, j int) bool { return scores[secondary[i]] > scores[secondary[j]] })

	return models.RegimeState{
		Primary:       primary,
		Secondary:     secondary,
		Scores:        scores,
		LowConfidence: scores[primary] < c.cfg.MinPrimaryScore,
	}, nil
}

// rawScores are the unnormalized regime memberships. Chop is the residual and
// never falls below ChopFloor, so the total is always positive.
func (c *Classifier) rawScores(rc models.RegimeContext) map[models.Regime]float64 {
	fit := 0.5 + 0.5*clamp01(rc.TrendR2)
	s := map[models.Regime]float64{
		models.RegimeTrendUp:     band(rc.TrendSlope, c.cfg.SlopeLow, c.cfg.SlopeHigh) * fit,
		models.RegimeTrendDown:   band(-rc.TrendSlope, c.cfg.SlopeLow, c.cfg.SlopeHigh) * fit,
		models.RegimeHighVol:     band(rc.VolPercentile, c.cfg.HighVolLow, c.cfg.HighVolHigh),
		models.RegimeExpansion:   band(rc.BandWidthPercentile, c.cfg.ExpansionLow, c.cfg.ExpansionHigh),
		models.RegimeContraction: band(1-rc.BandWidthPercentile, c.cfg.ContractionLow, c.cfg.ContractionHigh),
	}
	strongest := 0.0
	for _, v := range s {
		strongest = math.Max(strongest, v)
	}
	s[models.RegimeChop] = math.Max(c.cfg.ChopFloor, 1-strongest)
	return s
}

// band maps x linearly from [lo,hi] onto [0,1].
func band(x, lo, hi float64) float64 {
	if hi <= lo {
		if x >= hi {
			return 1
		}
		return 0
	}
	return clamp01((x - lo) / (hi - lo))
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
