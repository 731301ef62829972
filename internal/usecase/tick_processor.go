package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	drepo "github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/service"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/decision"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/features"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
	applogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

// recordNamespace seeds the SHA-1 UUIDs of decision records, so replaying the
// same ticks yields the same IDs.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("chloe/decision-record"))

// ExposureTracker is told the position of a symbol after every tick.
type ExposureTracker interface {
	Track(pos models.PositionState)
}

// Pipeline bundles the compute steps of one tick.
type Pipeline struct {
	Aggregator service.SignalAggregator
	Classifier service.RegimeClassifier
	Drift      service.DriftDetector
	Confidence service.ConfidenceEngine
	Sizer      service.PositionSizer
}

type symbolEngine struct {
	mu  sync.Mutex
	eng *decision.Engine
}

// TickProcessor runs the full pipeline for each tick and keeps one decision
// engine per symbol. Ticks of one symbol are serialized; symbols run in parallel.
type TickProcessor struct {
	pipe     Pipeline
	cfg      config.PipelineConfig
	lookback int
	history  drepo.HistoryReader
	gate     service.RiskGate
	exposure ExposureTracker
	pub      drepo.DecisionPublisher
	snaps    drepo.SnapshotStore
	metrics  drepo.Metrics
	l        *applogger.Logger

	mu      sync.Mutex
	engines map[string]*symbolEngine
}

// TickOption customizes a TickProcessor.
type TickOption func(*TickProcessor)

// WithRiskGate sets the pretrade predicate and, when it also tracks exposure,
// keeps it informed of every symbol's position.
func WithRiskGate(g service.RiskGate) TickOption {
	return func(p *TickProcessor) {
		p.gate = g
		if t, ok := g.(ExposureTracker); ok {
			p.exposure = t
		}
	}
}

func WithSnapshotStore(s drepo.SnapshotStore) TickOption {
	return func(p *TickProcessor) { p.snaps = s }
}

func WithMetrics(m drepo.Metrics) TickOption {
	return func(p *TickProcessor) { p.metrics = m }
}

func WithLogger(l *applogger.Logger) TickOption {
	return func(p *TickProcessor) { p.l = l }
}

func NewTickProcessor(
	pipe Pipeline,
	cfg config.PipelineConfig,
	lookback int,
	history drepo.HistoryReader,
	pub drepo.DecisionPublisher,
	opts ...TickOption,
) *TickProcessor {
	p := &TickProcessor{
		pipe:     pipe,
		cfg:      cfg,
		lookback: lookback,
		history:  history,
		pub:      pub,
		l:        applogger.Nop(),
		engines:  make(map[string]*symbolEngine),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process evaluates one tick and returns the decision records it produced.
// Compute failures never surface as errors: they become a data_error hold.
// Only a tick that cannot be attributed to a symbol is rejected.
func (p *TickProcessor) Process(ctx context.Context, sc models.SignalContext) ([]models.DecisionRecord, error) {
	if sc.Symbol == "" {
		return nil, models.NewDataError("symbol", "is required")
	}
	start := time.Now()

	se := p.engineFor(sc.Symbol)
	se.mu.Lock()
	in, evalErr := p.evaluate(ctx, sc)
	var decs []models.Decision
	if evalErr != nil {
		decs = []models.Decision{se.eng.Degrade()}
	} else {
		decs = se.eng.Step(in)
	}
	pos := se.eng.State()
	if p.exposure != nil {
		p.exposure.Track(pos)
	}
	se.mu.Unlock()

	recs := make([]models.DecisionRecord, 0, len(decs))
	for i, d := range decs {
		rec := models.DecisionRecord{
			ID:             recordID(sc.Symbol, sc.Ts, i),
			TickTs:         sc.Ts,
			Symbol:         sc.Symbol,
			Seq:            i,
			Action:         d.Action,
			Direction:      d.Direction,
			SizeMultiplier: d.SizeMultiplier,
			Reason:         d.Reason,
			Price:          sc.Price,
			Confidence:     in.Confidence,
			Regime:         in.Regime,
			Drift:          in.Drift,
			Size:           in.Size,
		}
		if evalErr != nil {
			rec.Error = evalErr.Error()
		}
		recs = append(recs, rec)
	}

	if evalErr != nil {
		kind := "compute"
		if models.IsDataError(evalErr) {
			kind = "data"
		}
		p.recordError(kind)
		p.l.Warn("tick degraded",
			applogger.String("symbol", sc.Symbol),
			applogger.String("kind", kind),
			applogger.Error(evalErr),
		)
	}

	p.emit(ctx, recs)
	if p.metrics != nil {
		p.metrics.RecordLatency("tick", time.Since(start).Seconds())
	}
	return recs, nil
}

// Positions returns the current position of every symbol seen so far.
func (p *TickProcessor) Positions() []models.PositionState {
	p.mu.Lock()
	engines := make([]*symbolEngine, 0, len(p.engines))
	for _, se := range p.engines {
		engines = append(engines, se)
	}
	p.mu.Unlock()

	out := make([]models.PositionState, 0, len(engines))
	for _, se := range engines {
		se.mu.Lock()
		out = append(out, se.eng.State())
		se.mu.Unlock()
	}
	return out
}

func (p *TickProcessor) engineFor(symbol string) *symbolEngine {
	p.mu.Lock()
	defer p.mu.Unlock()
	se, ok := p.engines[symbol]
	if !ok {
		se = &symbolEngine{eng: decision.NewEngine(symbol, p.cfg.Decision, p.gate)}
		p.engines[symbol] = se
	}
	return se
}

// evaluate runs every compute step. A panic in any step is returned as an error.
func (p *TickProcessor) evaluate(ctx context.Context, sc models.SignalContext) (in decision.TickInput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in pipeline: %v", r)
		}
	}()

	in = decision.TickInput{Ts: sc.Ts, Price: sc.Price, Pretrade: sc.Pretrade}

	groups, err := p.pipe.Aggregator.Aggregate(sc)
	if err != nil {
		return in, fmt.Errorf("aggregate: %w", err)
	}

	rctx, err := features.BuildRegimeContext(sc.Closes, p.cfg.Regime)
	if err != nil {
		return in, fmt.Errorf("features: %w", err)
	}
	in.Regime, err = p.pipe.Classifier.Classify(rctx)
	if err != nil {
		return in, fmt.Errorf("classify: %w", err)
	}

	trades, err := p.history.Snapshot(ctx, sc.Symbol, p.lookback)
	if err != nil {
		return in, fmt.Errorf("history: %w", err)
	}
	in.Drift, err = p.pipe.Drift.Compute(trades)
	if err != nil {
		return in, fmt.Errorf("drift: %w", err)
	}

	in.Confidence, err = p.pipe.Confidence.Compute(groups, in.Regime, in.Drift)
	if err != nil {
		return in, fmt.Errorf("confidence: %w", err)
	}
	in.Size, err = p.pipe.Sizer.Compute(in.Confidence, rctx.RealizedVol, in.Drift)
	if err != nil {
		return in, fmt.Errorf("size: %w", err)
	}

	for _, w := range []error{in.Regime.Warning(), in.Drift.Warning()} {
		var ih *models.InsufficientHistoryError
		if errors.As(w, &ih) {
			p.l.Debug("using neutral defaults",
				applogger.String("symbol", sc.Symbol),
				applogger.String("component", ih.Component),
				applogger.Int("have", ih.Have),
			)
		}
	}
	return in, nil
}

func (p *TickProcessor) emit(ctx context.Context, recs []models.DecisionRecord) {
	if len(recs) == 0 {
		return
	}
	if err := p.pub.Publish(ctx, recs); err != nil {
		p.recordError("publish")
		p.l.Error("publish decisions failed",
			applogger.String("symbol", recs[0].Symbol),
			applogger.Error(err),
		)
	}
	if p.snaps != nil {
		if err := p.snaps.Save(ctx, recs[len(recs)-1]); err != nil {
			p.recordError("snapshot")
			p.l.Error("save snapshot failed",
				applogger.String("symbol", recs[0].Symbol),
				applogger.Error(err),
			)
		}
	}
	for _, r := range recs {
		if p.metrics != nil {
			p.metrics.RecordDecision(r)
		}
		if r.Action != models.ActionHold {
			p.l.Info("decision",
				applogger.String("symbol", r.Symbol),
				applogger.String("action", string(r.Action)),
				applogger.String("direction", string(r.Direction)),
				applogger.String("reason", string(r.Reason)),
				applogger.Float64("size", r.SizeMultiplier),
				applogger.Float64("confidence", r.Confidence.FinalConfidence),
				applogger.String("regime", string(r.Regime.Primary)),
			)
		}
	}
}

func (p *TickProcessor) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func recordID(symbol string, ts time.Time, seq int) string {
	name := symbol + "|" + strconv.FormatInt(ts.UnixNano(), 10) + "|" + strconv.Itoa(seq)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}
