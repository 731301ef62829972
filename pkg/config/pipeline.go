package config

import (
	"fmt"
	"math"
	"sort"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
)

// WeightSumTolerance bounds how far category weights may stray from 1.
const WeightSumTolerance = 1e-9

// PipelineConfig is the immutable configuration shared by every compute step.
type PipelineConfig struct {
	Weights    Weights          `yaml:"weights"`
	Signals    SignalsConfig    `yaml:"signals"`
	Regime     RegimeConfig     `yaml:"regime"`
	Drift      DriftConfig      `yaml:"drift"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Sizing     SizingConfig     `yaml:"sizing"`
	Decision   DecisionConfig   `yaml:"decision"`
}

// Weights are the category fusion weights. They must sum to exactly 1.
type Weights struct {
	Flow           float64 `yaml:"flow" default:"0.40" validate:"gte=0,lte=1"`
	Volatility     float64 `yaml:"volatility" default:"0.25" validate:"gte=0,lte=1"`
	Microstructure float64 `yaml:"microstructure" default:"0.20" validate:"gte=0,lte=1"`
	CrossAsset     float64 `yaml:"cross_asset" default:"0.15" validate:"gte=0,lte=1"`
}

// Of returns the weight for category c.
func (w Weights) Of(c models.Category) float64 {
	switch c {
	case models.CategoryFlow:
		return w.Flow
	case models.CategoryVolatility:
		return w.Volatility
	case models.CategoryMicrostructure:
		return w.Microstructure
	case models.CategoryCrossAsset:
		return w.CrossAsset
	default:
		return 0
	}
}

// Sum adds the weights in category order.
func (w Weights) Sum() float64 {
	s := 0.0
	for _, c := range models.Categories {
		s += w.Of(c)
	}
	return s
}

// RegistryEntry declares one signal expected in a category.
type RegistryEntry struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
}

// SignalsConfig configures the aggregator.
type SignalsConfig struct {
	ZCap       float64                             `yaml:"zcap" default:"3" validate:"gt=0"`
	EdgeWeight float64                             `yaml:"edge_weight" default:"0.5" validate:"gte=0,lte=1"`
	Registry   map[models.Category][]RegistryEntry `yaml:"registry"`
}

// SetDefaults fills the registry when none was configured.
func (s *SignalsConfig) SetDefaults() {
	if s.Registry != nil {
		return
	}
	s.Registry = map[models.Category][]RegistryEntry{
		models.CategoryFlow: {
			{Name: "ofi", Required: true},
			{Name: "cvd", Required: true},
			{Name: "whale_flow"},
		},
		models.CategoryVolatility: {
			{Name: "rv_z", Required: true},
			{Name: "atr_z"},
		},
		models.CategoryMicrostructure: {
			{Name: "book_imbalance", Required: true},
			{Name: "spread_z"},
		},
		models.CategoryCrossAsset: {
			{Name: "btc_lead", Required: true},
			{Name: "funding_basis"},
		},
	}
}

// RegimeConfig holds the threshold bands the classifier scores against.
type RegimeConfig struct {
	MinObservations int     `yaml:"min_observations" default:"30" validate:"gt=1"`
	SlopeLow        float64 `yaml:"slope_low" default:"0.0003" validate:"gte=0"`
	SlopeHigh       float64 `yaml:"slope_high" default:"0.0015" validate:"gtfield=SlopeLow"`
	HighVolLow      float64 `yaml:"high_vol_low" default:"0.80" validate:"gte=0,lte=1"`
	HighVolHigh     float64 `yaml:"high_vol_high" default:"0.95" validate:"gtfield=HighVolLow,lte=1"`
	ExpansionLow    float64 `yaml:"expansion_low" default:"0.70" validate:"gte=0,lte=1"`
	ExpansionHigh   float64 `yaml:"expansion_high" default:"0.95" validate:"gtfield=ExpansionLow,lte=1"`
	ContractionLow  float64 `yaml:"contraction_low" default:"0.70" validate:"gte=0,lte=1"`
	ContractionHigh float64 `yaml:"contraction_high" default:"0.95" validate:"gtfield=ContractionLow,lte=1"`
	ChopFloor       float64 `yaml:"chop_floor" default:"0.05" validate:"gt=0,lte=1"`
	SecondaryMin    float64 `yaml:"secondary_min" default:"0.15" validate:"gte=0,lte=1"`
	MinPrimaryScore float64 `yaml:"min_primary_score" default:"0.35" validate:"gte=0,lte=1"`
	Window          int     `yaml:"window" default:"120" validate:"gt=1"`
	BandPeriod      int     `yaml:"band_period" default:"20" validate:"gt=1"`
}

// DriftConfig configures the drift detector.
type DriftConfig struct {
	Window     int     `yaml:"window" default:"150" validate:"gt=0"`
	MinSamples int     `yaml:"min_samples" default:"50" validate:"gt=1,ltefield=Window"`
	PFCap      float64 `yaml:"pf_cap" default:"5" validate:"gt=0"`
	PFHealthy  float64 `yaml:"pf_healthy" default:"1.2" validate:"gt=0"`
	CorrWeight float64 `yaml:"corr_weight" default:"0.5" validate:"gte=0,lte=1"`
	PFWeight   float64 `yaml:"pf_weight" default:"0.5" validate:"gte=0,lte=1"`
	TrendBand  float64 `yaml:"trend_band" default:"0.1" validate:"gte=0,lte=1"`
	Neutral    float64 `yaml:"neutral" default:"0.5" validate:"gte=0,lte=1"`
}

// ConfidenceConfig configures the fusion penalties.
type ConfidenceConfig struct {
	Alpha       float64 `yaml:"alpha" default:"0.5" validate:"gte=0,lte=1"`
	ChopFloor   float64 `yaml:"chop_floor" default:"0.7" validate:"gte=0,lte=1"`
	NeutralBand float64 `yaml:"neutral_band" default:"0.02" validate:"gte=0,lt=0.5"`
}

// SizeBand maps confidence at or above Min to a base multiplier.
type SizeBand struct {
	Min  float64 `yaml:"min" validate:"gte=0,lte=1"`
	Mult float64 `yaml:"mult" validate:"gte=0"`
}

// SizingConfig configures the position sizer.
type SizingConfig struct {
	Bands       []SizeBand `yaml:"bands" validate:"min=1,dive"`
	TargetVol   float64    `yaml:"target_vol" default:"0.01" validate:"gt=0"`
	VolScaleMin float64    `yaml:"vol_scale_min" default:"0.5" validate:"gt=0"`
	VolScaleMax float64    `yaml:"vol_scale_max" default:"1.5" validate:"gtefield=VolScaleMin"`
	DriftBeta   float64    `yaml:"drift_beta" default:"0.5" validate:"gte=0,lte=1"`
	MinMult     float64    `yaml:"min_mult" default:"0.25" validate:"gte=0"`
	MaxMult     float64    `yaml:"max_mult" default:"2" validate:"gtfield=MinMult"`
}

// SetDefaults installs the default confidence bands.
func (s *SizingConfig) SetDefaults() {
	if s.Bands != nil {
		return
	}
	s.Bands = []SizeBand{
		{Min: 0, Mult: 0},
		{Min: 0.3, Mult: 0.5},
		{Min: 0.6, Mult: 1.0},
		{Min: 0.8, Mult: 1.5},
	}
}

// Thresholds are the regime-parameterized gates of the decision engine.
type Thresholds struct {
	EntryMinConfidence float64 `yaml:"entry_min_confidence" default:"0.58"`
	ExitMinConfidence  float64 `yaml:"exit_min_confidence" default:"0.42"`
	TakeProfitConf     float64 `yaml:"take_profit_conf" default:"0.85"`
	StopLossConf       float64 `yaml:"stop_loss_conf" default:"0.70"`
	ReverseMinConf     float64 `yaml:"reverse_min_conf" default:"0.55"`
	MinHoldBars        int     `yaml:"min_hold_bars" default:"2"`
	DecayBars          int     `yaml:"decay_bars" default:"48"`
}

// ThresholdOverride replaces only the fields that are set.
type ThresholdOverride struct {
	EntryMinConfidence *float64 `yaml:"entry_min_confidence"`
	ExitMinConfidence  *float64 `yaml:"exit_min_confidence"`
	TakeProfitConf     *float64 `yaml:"take_profit_conf"`
	StopLossConf       *float64 `yaml:"stop_loss_conf"`
	ReverseMinConf     *float64 `yaml:"reverse_min_conf"`
	MinHoldBars        *int     `yaml:"min_hold_bars"`
	DecayBars          *int     `yaml:"decay_bars"`
}

// DecisionConfig configures the per-symbol state machine.
type DecisionConfig struct {
	AllowOpens         bool                                `yaml:"allow_opens" default:"true"`
	MaxDriftForEntries float64                             `yaml:"max_drift_for_entries" default:"0.7" validate:"gte=0,lte=1"`
	Default            Thresholds                          `yaml:"default"`
	Regimes            map[models.Regime]ThresholdOverride `yaml:"regimes"`
}

// For resolves the thresholds in force for regime r.
func (d DecisionConfig) For(r models.Regime) Thresholds {
	t := d.Default
	o, ok := d.Regimes[r]
	if !ok {
		return t
	}
	if o.EntryMinConfidence != nil {
		t.EntryMinConfidence = *o.EntryMinConfidence
	}
	if o.ExitMinConfidence != nil {
		t.ExitMinConfidence = *o.ExitMinConfidence
	}
	if o.TakeProfitConf != nil {
		t.TakeProfitConf = *o.TakeProfitConf
	}
	if o.StopLossConf != nil {
		t.StopLossConf = *o.StopLossConf
	}
	if o.ReverseMinConf != nil {
		t.ReverseMinConf = *o.ReverseMinConf
	}
	if o.MinHoldBars != nil {
		t.MinHoldBars = *o.MinHoldBars
	}
	if o.DecayBars != nil {
		t.DecayBars = *o.DecayBars
	}
	return t
}

// Validate applies the semantic checks struct tags cannot express.
func (p *PipelineConfig) Validate() error {
	if sum := p.Weights.Sum(); math.Abs(sum-1) > WeightSumTolerance {
		return &models.ConfigError{Key: "pipeline.weights", Reason: fmt.Sprintf("must sum to 1, got %.12f", sum)}
	}

	for cat, entries := range p.Signals.Registry {
		if !cat.IsValid() {
			return &models.ConfigError{Key: "pipeline.signals.registry", Reason: fmt.Sprintf("unknown category %q", cat)}
		}
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			if e.Name == "" {
				return &models.ConfigError{Key: "pipeline.signals.registry." + string(cat), Reason: "signal name is required"}
			}
			if seen[e.Name] {
				return &models.ConfigError{Key: "pipeline.signals.registry." + string(cat), Reason: fmt.Sprintf("duplicate signal %q", e.Name)}
			}
			seen[e.Name] = true
		}
	}

	if p.Drift.CorrWeight+p.Drift.PFWeight <= 0 {
		return &models.ConfigError{Key: "pipeline.drift", Reason: "corr_weight and pf_weight cannot both be zero"}
	}

	bands := p.Sizing.Bands
	if !sort.SliceIsSorted(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min }) {
		return &models.ConfigError{Key: "pipeline.sizing.bands", Reason: "must be ordered by ascending min"}
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].Min == bands[i-1].Min {
			return &models.ConfigError{Key: "pipeline.sizing.bands", Reason: fmt.Sprintf("duplicate band min %.3f", bands[i].Min)}
		}
	}

	if err := validateThresholds("pipeline.decision.default", p.Decision.Default); err != nil {
		return err
	}
	for r := range p.Decision.Regimes {
		if !r.IsValid() {
			return &models.ConfigError{Key: "pipeline.decision.regimes", Reason: fmt.Sprintf("unknown regime %q", r)}
		}
		if err := validateThresholds("pipeline.decision.regimes."+string(r), p.Decision.For(r)); err != nil {
			return err
		}
	}
	return nil
}

func validateThresholds(key string, t Thresholds) error {
	probs := map[string]float64{
		"entry_min_confidence": t.EntryMinConfidence,
		"exit_min_confidence":  t.ExitMinConfidence,
		"take_profit_conf":     t.TakeProfitConf,
		"stop_loss_conf":       t.StopLossConf,
		"reverse_min_conf":     t.ReverseMinConf,
	}
	names := make([]string, 0, len(probs))
	for k := range probs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if v := probs[k]; v < 0 || v > 1 || math.IsNaN(v) {
			return &models.ConfigError{Key: key + "." + k, Reason: fmt.Sprintf("must be within [0,1], got %v", v)}
		}
	}
	if t.MinHoldBars < 0 {
		return &models.ConfigError{Key: key + ".min_hold_bars", Reason: "must be >= 0"}
	}
	if t.DecayBars < 1 {
		return &models.ConfigError{Key: key + ".decay_bars", Reason: "must be >= 1"}
	}
	return nil
}
