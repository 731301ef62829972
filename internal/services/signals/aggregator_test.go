package signals

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

func newAggregator(t *testing.T) *Aggregator {
	t.Helper()
	c, err := config.Default()
	require.NoError(t, err)
	return NewAggregator(c.Pipeline.Signals)
}

func rec(name string, up, z float64) models.SignalRecord {
	return models.SignalRecord{
		Name:          name,
		ZScore:        z,
		DirectionProb: models.DirectionProb{Up: up, Down: 1 - up},
		Confidence:    1,
	}
}

// neutralContext carries every registered signal with no directional view.
func neutralContext() models.SignalContext {
	return models.SignalContext{
		Symbol: "ETHUSDT",
		Ts:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Signals: map[models.Category][]models.SignalRecord{
			models.CategoryFlow:           {rec("ofi", 0.5, 0), rec("cvd", 0.5, 0), rec("whale_flow", 0.5, 0)},
			models.CategoryVolatility:     {rec("rv_z", 0.5, 0), rec("atr_z", 0.5, 0)},
			models.CategoryMicrostructure: {rec("book_imbalance", 0.5, 0), rec("spread_z", 0.5, 0)},
			models.CategoryCrossAsset:     {rec("btc_lead", 0.5, 0), rec("funding_basis", 0.5, 0)},
		},
	}
}

func TestAggregateNeutral(t *testing.T) {
	g, err := newAggregator(t).Aggregate(neutralContext())
	require.NoError(t, err)
	for _, c := range models.Categories {
		assert.Equal(t, 0.5, g.Score(c), c)
	}
	assert.Empty(t, g.ReducedSample)
	assert.Zero(t, g.Unregistered)
}

func TestAggregateWeightsByConfidenceAndDrift(t *testing.T) {
	sc := neutralContext()
	ofi := rec("ofi", 0.8, 1.5) // strength 0.5*0.6 + 0.5*0.5 = 0.55
	cvd := rec("cvd", 0.2, -3)  // strength 0.5*-0.6 + 0.5*-1 = -0.8
	cvd.Confidence = 0.5
	cvd.Drift = 0.5 // weight 0.25
	sc.Signals[models.CategoryFlow] = []models.SignalRecord{ofi, cvd}

	g, err := newAggregator(t).Aggregate(sc)
	require.NoError(t, err)

	bias := (1*0.55 + 0.25*-0.8) / 1.25
	assert.InDelta(t, (1+bias)/2, g.Score(models.CategoryFlow), 1e-12)
	assert.True(t, g.ReducedSample[models.CategoryFlow], "whale_flow missing")
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	a := neutralContext()
	a.Signals[models.CategoryFlow] = []models.SignalRecord{rec("ofi", 0.71, 0.3), rec("cvd", 0.33, 2.9), rec("whale_flow", 0.9, -1.1)}
	b := neutralContext()
	b.Signals[models.CategoryFlow] = []models.SignalRecord{rec("whale_flow", 0.9, -1.1), rec("cvd", 0.33, 2.9), rec("ofi", 0.71, 0.3)}

	agg := newAggregator(t)
	ga, err := agg.Aggregate(a)
	require.NoError(t, err)
	gb, err := agg.Aggregate(b)
	require.NoError(t, err)
	assert.Equal(t, ga, gb)
}

func TestAggregateScoresStayBounded(t *testing.T) {
	sc := neutralContext()
	sc.Signals[models.CategoryVolatility] = []models.SignalRecord{rec("rv_z", 1, 50), rec("atr_z", 1, 1e9)}
	sc.Signals[models.CategoryCrossAsset] = []models.SignalRecord{rec("btc_lead", 0, -50), rec("funding_basis", 0, -1e9)}

	g, err := newAggregator(t).Aggregate(sc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, g.Score(models.CategoryVolatility))
	assert.Equal(t, 0.0, g.Score(models.CategoryCrossAsset))
}

func TestAggregateMissingRequiredSignal(t *testing.T) {
	sc := neutralContext()
	sc.Signals[models.CategoryMicrostructure] = []models.SignalRecord{rec("spread_z", 0.5, 0)}

	_, err := newAggregator(t).Aggregate(sc)
	require.Error(t, err)
	var de *models.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "microstructure.book_imbalance", de.Field)
}

func TestAggregateNonFinite(t *testing.T) {
	sc := neutralContext()
	bad := rec("atr_z", 0.5, math.NaN())
	sc.Signals[models.CategoryVolatility] = []models.SignalRecord{rec("rv_z", 0.5, 0), bad}

	g, err := newAggregator(t).Aggregate(sc)
	require.NoError(t, err)
	assert.True(t, g.ReducedSample[models.CategoryVolatility])
	assert.Equal(t, 0.5, g.Score(models.CategoryVolatility))

	bad.Name = "rv_z"
	sc.Signals[models.CategoryVolatility] = []models.SignalRecord{bad}
	_, err = newAggregator(t).Aggregate(sc)
	assert.True(t, models.IsDataError(err))
}

func TestAggregateRejectsInvalidRecords(t *testing.T) {
	cases := map[string]func(r *models.SignalRecord){
		"prob sum":       func(r *models.SignalRecord) { r.DirectionProb = models.DirectionProb{Up: 0.6, Down: 0.6} },
		"confidence":     func(r *models.SignalRecord) { r.Confidence = 1.2 },
		"negative drift": func(r *models.SignalRecord) { r.Drift = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			sc := neutralContext()
			r := rec("ofi", 0.5, 0)
			mutate(&r)
			sc.Signals[models.CategoryFlow] = []models.SignalRecord{r, rec("cvd", 0.5, 0)}
			_, err := newAggregator(t).Aggregate(sc)
			assert.True(t, models.IsDataError(err))
		})
	}
}

func TestAggregateCountsUnregistered(t *testing.T) {
	sc := neutralContext()
	sc.Signals[models.CategoryFlow] = append(sc.Signals[models.CategoryFlow], rec("sentiment", 1, 3))
	sc.Signals["onchain"] = []models.SignalRecord{rec("x", 1, 1), rec("y", 1, 1)}

	g, err := newAggregator(t).Aggregate(sc)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Unregistered)
	assert.Equal(t, 0.5, g.Score(models.CategoryFlow))
}

func TestAggregateZeroWeightIsNeutral(t *testing.T) {
	sc := neutralContext()
	ofi := rec("ofi", 1, 3)
	ofi.Drift = 1
	cvd := rec("cvd", 1, 3)
	cvd.Confidence = 0
	sc.Signals[models.CategoryFlow] = []models.SignalRecord{ofi, cvd}

	g, err := newAggregator(t).Aggregate(sc)
	require.NoError(t, err)
	assert.Equal(t, 0.5, g.Score(models.CategoryFlow))
}
