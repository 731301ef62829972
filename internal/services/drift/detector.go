package drift

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

// Detector estimates how far live results have drifted from what confidence predicted.
type Detector struct {
	cfg config.DriftConfig
}

func NewDetector(cfg config.DriftConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Compute reads a ledger snapshot (oldest first) and never mutates it.
func (d *Detector) Compute(trades []models.ClosedTrade) (models.DriftState, error) {
	valid := make([]models.ClosedTrade, 0, len(trades))
	discarded := 0
	for i, t := range trades {
		if t.EntryPrice < 0 || t.ExitPrice < 0 {
			return models.DriftState{}, models.NewDataError("trades", "negative price at index %d", i)
		}
		if !isFinite(t.RealizedPct) || !isFinite(t.EntryConfidence) {
			return models.DriftState{}, models.NewDataError("trades", "non-finite value at index %d", i)
		}
		if t.IsGhost() {
			discarded++
			continue
		}
		// scratches say nothing about edge and do not use up window slots
		if t.IsScratch {
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) > d.cfg.Window {
		valid = valid[len(valid)-d.cfg.Window:]
	}

	m := d.measure(valid)
	st := models.DriftState{
		DriftScore:           m.score,
		PFLocal:              m.pf,
		ConfidenceReturnCorr: m.corr,
		Samples:              m.samples,
		Discarded:            discarded,
		ScratchOnly:          m.scratchOnly,
	}

	if m.samples < d.cfg.MinSamples {
		st.DriftScore = d.cfg.Neutral
		st.Trend = models.DriftInsufficientData
		st.InsufficientData = true
		return st, nil
	}

	half := len(valid) / 2
	delta := d.measure(valid[half:]).score - d.measure(valid[:half]).score
	switch {
	case delta > d.cfg.TrendBand:
		st.Trend = models.DriftDegrading
	case delta < -d.cfg.TrendBand:
		st.Trend = models.DriftImproving
	default:
		st.Trend = models.DriftStable
	}
	return st, nil
}

type measurement struct {
	score       float64
	pf          float64
	corr        float64
	samples     int
	scratchOnly bool
}

// measure scores the non-scratch trades of window.
func (d *Detector) measure(window []models.ClosedTrade) measurement {
	conf := make([]float64, 0, len(window))
	ret := make([]float64, 0, len(window))
	var gp, gl float64
	for _, t := range window {
		if t.IsScratch {
			continue
		}
		conf = append(conf, t.EntryConfidence)
		ret = append(ret, t.RealizedPct)
		if t.RealizedPct > 0 {
			gp += t.RealizedPct
		} else {
			gl -= t.RealizedPct
		}
	}

	m := measurement{samples: len(conf)}
	switch {
	case gp == 0 && gl == 0:
		m.pf = 1.0
		m.scratchOnly = true
	case gl == 0:
		m.pf = d.cfg.PFCap
	default:
		m.pf = math.Min(gp/gl, d.cfg.PFCap)
	}

	m.corr = correlation(conf, ret)

	wc, wp := d.cfg.CorrWeight, d.cfg.PFWeight
	norm := wc + wp
	corrTerm := (1 - m.corr) / 2
	pfTerm := clamp((d.cfg.PFHealthy-m.pf)/d.cfg.PFHealthy, 0, 1)
	m.score = clamp((wc*corrTerm+wp*pfTerm)/norm, 0, 1)
	return m
}

// correlation is Pearson's r, or 0 when it is undefined.
func correlation(x, y []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return clamp(r, -1, 1)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
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
