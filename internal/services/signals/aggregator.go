package signals

import (
	"math"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

// ProbTolerance bounds how far Up+Down may stray from 1.
const ProbTolerance = 1e-6

// Aggregator folds per-signal records into one directional score per category.
type Aggregator struct {
	cfg config.SignalsConfig
}

func NewAggregator(cfg config.SignalsConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate scores every category of sc. Records are visited in registry order,
// so the result does not depend on how the producer ordered them.
func (a *Aggregator) Aggregate(sc models.SignalContext) (models.GroupScores, error) {
	out := models.GroupScores{
		Scores:        make(map[models.Category]float64, len(models.Categories)),
		ReducedSample: make(map[models.Category]bool),
	}

	for cat, recs := range sc.Signals {
		if !cat.IsValid() {
			out.Unregistered += len(recs)
		}
	}

	for _, cat := range models.Categories {
		score, reduced, unregistered, err := a.category(cat, sc.Signals[cat])
		if err != nil {
			return models.GroupScores{}, err
		}
		out.Scores[cat] = score
		out.Unregistered += unregistered
		if reduced {
			out.ReducedSample[cat] = true
		}
	}
	return out, nil
}

func (a *Aggregator) category(cat models.Category, recs []models.SignalRecord) (score float64, reduced bool, unregistered int, err error) {
	entries := a.cfg.Registry[cat]

	byName := make(map[string]models.SignalRecord, len(recs))
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Name] = true
	}
	for _, r := range recs {
		if !known[r.Name] {
			unregistered++
			continue
		}
		if _, dup := byName[r.Name]; dup {
			return 0, false, 0, models.NewDataError(string(cat)+"."+r.Name, "duplicate signal")
		}
		byName[r.Name] = r
	}

	var sumW, sumWS float64
	for _, e := range entries {
		field := string(cat) + "." + e.Name
		r, ok := byName[e.Name]
		if !ok || !finite(r) {
			if e.Required {
				if !ok {
					return 0, false, 0, models.NewDataError(field, "required signal missing")
				}
				return 0, false, 0, models.NewDataError(field, "required signal is not finite")
			}
			reduced = true
			continue
		}
		if err := check(field, r); err != nil {
			return 0, false, 0, err
		}

		w := r.Confidence * (1 - r.Drift)
		sumW += w
		sumWS += w * a.strength(r)
	}

	if sumW == 0 {
		return 0.5, reduced, unregistered, nil
	}
	bias := clamp(sumWS/sumW, -1, 1)
	return (1 + bias) / 2, reduced, unregistered, nil
}

// strength blends the probability edge with the capped z-score into [-1,1].
func (a *Aggregator) strength(r models.SignalRecord) float64 {
	edge := r.DirectionProb.Up - r.DirectionProb.Down
	z := clamp(r.ZScore, -a.cfg.ZCap, a.cfg.ZCap) / a.cfg.ZCap
	return a.cfg.EdgeWeight*edge + (1-a.cfg.EdgeWeight)*z
}

func check(field string, r models.SignalRecord) error {
	p := r.DirectionProb
	if p.Up < 0 || p.Down < 0 || math.Abs(p.Up+p.Down-1) > ProbTolerance {
		return models.NewDataError(field, "direction_prob up=%v down=%v must be non-negative and sum to 1", p.Up, p.Down)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return models.NewDataError(field, "confidence %v outside [0,1]", r.Confidence)
	}
	if r.Drift < 0 || r.Drift > 1 {
		return models.NewDataError(field, "drift %v outside [0,1]", r.Drift)
	}
	return nil
}

func finite(r models.SignalRecord) bool {
	for _, v := range []float64{r.Raw, r.ZScore, r.DirectionProb.Up, r.DirectionProb.Down, r.Confidence, r.Drift} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
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
