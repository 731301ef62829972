package confidence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	c, err := config.Default()
	require.NoError(t, err)
	return NewEngine(c.Pipeline.Weights, c.Pipeline.Confidence)
}

func groups(flow, vol, micro, cross float64) models.GroupScores {
	return models.GroupScores{Scores: map[models.Category]float64{
		models.CategoryFlow:           flow,
		models.CategoryVolatility:     vol,
		models.CategoryMicrostructure: micro,
		models.CategoryCrossAsset:     cross,
	}}
}

var trendUp = models.RegimeState{Primary: models.RegimeTrendUp}
var chop = models.RegimeState{Primary: models.RegimeChop}

func TestComputeWorkedExample(t *testing.T) {
	e := newEngine(t)

	// 0.4*0.8 + 0.25*0.6 + 0.2*0.5 + 0.15*0.4 = 0.63
	st, err := e.Compute(groups(0.8, 0.6, 0.5, 0.4), trendUp, models.DriftState{DriftScore: 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 0.63, st.Raw, 1e-12)
	assert.Equal(t, 1.0, st.PenaltyRegime)
	assert.InDelta(t, 0.95, st.PenaltyDrift, 1e-12)
	assert.InDelta(t, 0.5985, st.FinalConfidence, 1e-12)
	assert.Equal(t, models.DirectionLong, st.Direction)
	assert.GreaterOrEqual(t, st.FinalConfidence, 0.58)

	// a raw of 0.67 fuses to 0.6365
	st, err = e.Compute(groups(0.9, 0.6, 0.5, 0.4), trendUp, models.DriftState{DriftScore: 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 0.67, st.Raw, 1e-12)
	assert.InDelta(t, 0.6365, st.FinalConfidence, 1e-12)
	assert.Equal(t, models.DirectionLong, st.Direction)
}

func TestComputeShortSide(t *testing.T) {
	st, err := newEngine(t).Compute(groups(0.2, 0.2, 0.2, 0.2), trendUp, models.DriftState{})
	require.NoError(t, err)
	assert.Equal(t, models.DirectionShort, st.Direction)
	assert.InDelta(t, 0.8, st.FinalConfidence, 1e-12)
	assert.InDelta(t, 0.8, st.Short, 1e-12)
	assert.InDelta(t, 0.2, st.Long, 1e-12)
	for _, c := range models.Categories {
		assert.InDelta(t, 0.8, st.Components[c], 1e-12)
	}
}

func TestComputeNeutralBand(t *testing.T) {
	st, err := newEngine(t).Compute(groups(0.51, 0.5, 0.5, 0.5), trendUp, models.DriftState{})
	require.NoError(t, err)
	assert.Equal(t, models.DirectionFlat, st.Direction)
	assert.Equal(t, math.Max(st.Long, st.Short), st.FinalConfidence)
}

func TestComputeChopPenalizesAlignedConviction(t *testing.T) {
	e := newEngine(t)

	st, err := e.Compute(groups(0.8, 0.8, 0.8, 0.8), chop, models.DriftState{})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, st.PenaltyRegime, 1e-12)
	assert.InDelta(t, 0.56, st.FinalConfidence, 1e-12)

	// flow bullish, volatility bearish: only part of the conviction agrees
	st, err = e.Compute(groups(0.9, 0.2, 0.5, 0.5), chop, models.DriftState{})
	require.NoError(t, err)
	tau := 0.32 / 0.47
	assert.InDelta(t, 1-0.3*tau, st.PenaltyRegime, 1e-12)
	assert.Greater(t, st.PenaltyRegime, 0.7)

	st, err = e.Compute(groups(0.5, 0.5, 0.5, 0.5), chop, models.DriftState{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.PenaltyRegime)
}

func TestComputeIsBounded(t *testing.T) {
	e := newEngine(t)
	vals := []float64{0, 0.1, 0.5, 0.9, 1}
	for _, a := range vals {
		for _, b := range vals {
			for _, d := range vals {
				for _, r := range []models.RegimeState{trendUp, chop} {
					st, err := e.Compute(groups(a, b, 1-a, 1-b), r, models.DriftState{DriftScore: d})
					require.NoError(t, err)
					for _, v := range []float64{st.FinalConfidence, st.Long, st.Short, st.Raw} {
						assert.GreaterOrEqual(t, v, 0.0)
						assert.LessOrEqual(t, v, 1.0)
					}
				}
			}
		}
	}
}

func TestComputeIsPure(t *testing.T) {
	e := newEngine(t)
	g := groups(0.7, 0.4, 0.6, 0.55)
	r := models.RegimeState{Primary: models.RegimeChop, Scores: map[models.Regime]float64{models.RegimeChop: 1}}
	d := models.DriftState{DriftScore: 0.3}

	first, err := e.Compute(g, r, d)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Compute(g, r, d)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, groups(0.7, 0.4, 0.6, 0.55), g)
	assert.Equal(t, map[models.Regime]float64{models.RegimeChop: 1}, r.Scores)
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	e := newEngine(t)
	_, err := e.Compute(groups(1.2, 0.5, 0.5, 0.5), trendUp, models.DriftState{})
	assert.True(t, models.IsDataError(err))
	_, err = e.Compute(groups(0.5, 0.5, 0.5, 0.5), trendUp, models.DriftState{DriftScore: math.NaN()})
	assert.True(t, models.IsDataError(err))
}
