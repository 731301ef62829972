package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
// Callers must reject non-positive prices first.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out = append(out, math.Log(closes[i]/closes[i-1]))
	}
	return out
}

// RollingStdDev returns the sample standard deviation of every full window of xs.
func RollingStdDev(xs []float64, window int) []float64 {
	if window <= 1 || len(xs) < window {
		return nil
	}
	out := make([]float64, 0, len(xs)-window+1)
	for i := window; i <= len(xs); i++ {
		out = append(out, stat.StdDev(xs[i-window:i], nil))
	}
	return out
}

// RollingBandWidth returns Bollinger bandwidth (4σ / mean) for every full window of closes.
func RollingBandWidth(closes []float64, period int) []float64 {
	if period <= 1 || len(closes) < period {
		return nil
	}
	out := make([]float64, 0, len(closes)-period+1)
	for i := period; i <= len(closes); i++ {
		mean, sd := stat.MeanStdDev(closes[i-period:i], nil)
		if mean <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, 4*sd/mean)
	}
	return out
}

// PercentileRank returns the share of xs that is <= the last element of xs.
func PercentileRank(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	last := xs[len(xs)-1]
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := sort.Search(len(sorted), func(i int) bool { return sorted[i] > last })
	return float64(n) / float64(len(sorted))
}

// TrendFit fits ln(price) against the bar index and returns slope per bar and R².
func TrendFit(closes []float64) (slope, r2 float64) {
	if len(closes) < 2 {
		return 0, 0
	}
	xs := make([]float64, len(closes))
	ys := make([]float64, len(closes))
	for i, c := range closes {
		xs[i] = float64(i)
		ys[i] = math.Log(c)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 = stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) {
		// flat series: no variance to explain
		r2 = 0
	}
	return beta, clamp01(r2)
}

// BuildRegimeContext derives classifier features from the most recent closes.
// Only the trailing cfg.Window closes are used.
func BuildRegimeContext(closes []float64, cfg config.RegimeConfig) (models.RegimeContext, error) {
	for i, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
			return models.RegimeContext{}, models.NewDataError("closes", "invalid price %v at index %d", c, i)
		}
	}
	if len(closes) > cfg.Window {
		closes = closes[len(closes)-cfg.Window:]
	}

	ctx := models.RegimeContext{Observations: len(closes)}
	if len(closes) < 2 {
		return ctx, nil
	}

	ctx.TrendSlope, ctx.TrendR2 = TrendFit(closes)

	rets := ComputeLogReturns(closes)
	volWindow := cfg.BandPeriod
	if volWindow > len(rets) {
		volWindow = len(rets)
	}
	if vols := RollingStdDev(rets, volWindow); len(vols) > 0 {
		ctx.RealizedVol = vols[len(vols)-1]
		ctx.VolPercentile = PercentileRank(vols)
	}
	if widths := RollingBandWidth(closes, cfg.BandPeriod); len(widths) > 0 {
		ctx.BandWidthPercentile = PercentileRank(widths)
	}
	return ctx, nil
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
