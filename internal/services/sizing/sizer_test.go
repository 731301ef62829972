package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

func newSizer(t *testing.T) (*Sizer, config.SizingConfig) {
	t.Helper()
	c, err := config.Default()
	require.NoError(t, err)
	return NewSizer(c.Pipeline.Sizing), c.Pipeline.Sizing
}

func conf(v float64) models.ConfidenceState {
	return models.ConfidenceState{FinalConfidence: v, Direction: models.DirectionLong}
}

func TestComputeBands(t *testing.T) {
	s, _ := newSizer(t)
	cases := []struct {
		conf float64
		base float64
	}{
		{0.1, 0},
		{0.3, 0.5},
		{0.59, 0.5},
		{0.6, 1.0},
		{0.85, 1.5},
	}
	for _, tc := range cases {
		res, err := s.Compute(conf(tc.conf), 0.01, models.DriftState{})
		require.NoError(t, err)
		assert.Equal(t, tc.base, res.Base, "conf %v", tc.conf)
	}
}

func TestComputeScalesByVolAndDrift(t *testing.T) {
	s, _ := newSizer(t)

	res, err := s.Compute(conf(0.7), 0.02, models.DriftState{DriftScore: 0.4})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.VolScale, 1e-12)
	assert.InDelta(t, 0.8, res.DriftScale, 1e-12)
	assert.InDelta(t, 0.4, res.Multiplier, 1e-12)
	assert.False(t, res.ZeroSize)

	res, err = s.Compute(conf(0.9), 0.001, models.DriftState{})
	require.NoError(t, err)
	assert.Equal(t, 1.5, res.VolScale)
	assert.Equal(t, 2.0, res.Multiplier, "1.5*1.5 clamps to max_mult")
}

func TestComputeClampsToMinMult(t *testing.T) {
	s, cfg := newSizer(t)
	res, err := s.Compute(conf(0.35), 0.05, models.DriftState{DriftScore: 1})
	require.NoError(t, err)
	// 0.5 * 0.5 * 0.5 = 0.125 lifts to min_mult
	assert.Equal(t, cfg.MinMult, res.Multiplier)
}

func TestComputeZeroSize(t *testing.T) {
	s, _ := newSizer(t)
	res, err := s.Compute(conf(0.2), 0.01, models.DriftState{})
	require.NoError(t, err)
	assert.True(t, res.ZeroSize)
	assert.Equal(t, 0.0, res.Multiplier)
}

func TestComputeZeroDriftScale(t *testing.T) {
	cfg := config.SizingConfig{
		Bands:       []config.SizeBand{{Min: 0, Mult: 1}},
		TargetVol:   0.01,
		VolScaleMin: 0.5,
		VolScaleMax: 1.5,
		DriftBeta:   1,
		MinMult:     0.25,
		MaxMult:     2,
	}
	res, err := NewSizer(cfg).Compute(conf(0.9), 0.01, models.DriftState{DriftScore: 1})
	require.NoError(t, err)
	assert.True(t, res.ZeroSize)
	assert.Equal(t, 0.0, res.Multiplier)
}

func TestComputeVolFallback(t *testing.T) {
	s, _ := newSizer(t)
	res, err := s.Compute(conf(0.65), 0, models.DriftState{})
	require.NoError(t, err)
	assert.True(t, res.VolFallback)
	assert.Equal(t, 1.0, res.VolScale)
	assert.Equal(t, 1.0, res.Multiplier)
}

func TestComputeRejectsBadVol(t *testing.T) {
	s, _ := newSizer(t)
	for _, v := range []float64{-0.01, math.NaN(), math.Inf(1)} {
		_, err := s.Compute(conf(0.7), v, models.DriftState{})
		assert.True(t, models.IsDataError(err), "vol %v", v)
	}
}

func TestComputeMultiplierIsZeroOrWithinBounds(t *testing.T) {
	s, cfg := newSizer(t)
	for c := 0.0; c <= 1.0; c += 0.05 {
		for _, v := range []float64{0, 0.001, 0.01, 0.1} {
			for _, d := range []float64{0, 0.5, 1} {
				res, err := s.Compute(conf(c), v, models.DriftState{DriftScore: d})
				require.NoError(t, err)
				if res.Multiplier != 0 {
					assert.GreaterOrEqual(t, res.Multiplier, cfg.MinMult)
					assert.LessOrEqual(t, res.Multiplier, cfg.MaxMult)
				} else {
					assert.True(t, res.ZeroSize)
				}
			}
		}
	}
}
