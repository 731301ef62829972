package sizing

import (
	"math"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

// Sizer turns confidence, volatility and drift into a position size multiplier.
// The multiplier is either exactly 0 or within [MinMult, MaxMult].
type Sizer struct {
	cfg config.SizingConfig
}

func NewSizer(cfg config.SizingConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

func (s *Sizer) Compute(c models.ConfidenceState, vol float64, d models.DriftState) (models.SizeResult, error) {
	if math.IsNaN(vol) || math.IsInf(vol, 0) || vol < 0 {
		return models.SizeResult{}, models.NewDataError("vol", "must be finite and non-negative, got %v", vol)
	}
	if math.IsNaN(c.FinalConfidence) {
		return models.SizeResult{}, models.NewDataError("final_confidence", "not a number")
	}

	res := models.SizeResult{
		Base:       s.base(c.FinalConfidence),
		DriftScale: math.Max(0, 1-s.cfg.DriftBeta*d.DriftScore),
	}
	if vol == 0 {
		res.VolScale = 1
		res.VolFallback = true
	} else {
		res.VolScale = clamp(s.cfg.TargetVol/vol, s.cfg.VolScaleMin, s.cfg.VolScaleMax)
	}

	if res.Base == 0 || res.DriftScale == 0 {
		res.ZeroSize = true
		return res, nil
	}
	res.Multiplier = clamp(res.Base*res.VolScale*res.DriftScale, s.cfg.MinMult, s.cfg.MaxMult)
	return res, nil
}

// base returns the multiplier of the highest band whose Min is reached.
func (s *Sizer) base(conf float64) float64 {
	b := 0.0
	for _, band := range s.cfg.Bands {
		if conf >= band.Min {
			b = band.Mult
		}
	}
	return b
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
