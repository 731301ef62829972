package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/repository"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/confidence"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/drift"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/regime"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/risk"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/signals"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/sizing"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/cache"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
	pkgkafka "github.com/saltymaverick/Chloe-alpha-sub002/pkg/kafka"
)

type stubAggregator struct{ err error }

func (s stubAggregator) Aggregate(models.SignalContext) (models.GroupScores, error) {
	if s.err != nil {
		return models.GroupScores{}, s.err
	}
	return models.GroupScores{Scores: map[models.Category]float64{}}, nil
}

type stubClassifier struct{ panics bool }

func (s stubClassifier) Classify(models.RegimeContext) (models.RegimeState, error) {
	if s.panics {
		panic("boom")
	}
	return models.RegimeState{Primary: models.RegimeTrendUp, Scores: map[models.Regime]float64{models.RegimeTrendUp: 1}}, nil
}

type stubDrift struct{}

func (stubDrift) Compute([]models.ClosedTrade) (models.DriftState, error) {
	return models.DriftState{DriftScore: 0.1, Trend: models.DriftStable}, nil
}

// scriptedConfidence replays a fixed sequence and then repeats its last state.
type scriptedConfidence struct {
	mu     sync.Mutex
	states []models.ConfidenceState
	i      int
}

func (s *scriptedConfidence) Compute(models.GroupScores, models.RegimeState, models.DriftState) (models.ConfidenceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[len(s.states)-1]
	if s.i < len(s.states) {
		st = s.states[s.i]
	}
	s.i++
	return st, nil
}

type stubSizer struct{}

func (stubSizer) Compute(models.ConfidenceState, float64, models.DriftState) (models.SizeResult, error) {
	return models.SizeResult{Multiplier: 1, Base: 1, VolScale: 1, DriftScale: 1}, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	recs []models.DecisionRecord
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, recs []models.DecisionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, recs...)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

type fakeMetrics struct {
	mu        sync.Mutex
	decisions int
	errors    map[string]int
}

func (m *fakeMetrics) RecordDecision(models.DecisionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func long(p float64) models.ConfidenceState {
	return models.ConfidenceState{FinalConfidence: p, Direction: models.DirectionLong, Long: p, Short: 1 - p}
}

func short(p float64) models.ConfidenceState {
	return models.ConfidenceState{FinalConfidence: p, Direction: models.DirectionShort, Long: 1 - p, Short: p}
}

func defaultCfg(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Default()
	require.NoError(t, err)
	return c
}

func stubPipeline(conf *scriptedConfidence) Pipeline {
	return Pipeline{
		Aggregator: stubAggregator{},
		Classifier: stubClassifier{},
		Drift:      stubDrift{},
		Confidence: conf,
		Sizer:      stubSizer{},
	}
}

func tickAt(i int, price float64) models.SignalContext {
	return models.SignalContext{
		Symbol:  "BTCUSDT",
		Ts:      time.Date(2026, 3, 1, 0, i, 0, 0, time.UTC),
		Price:   price,
		Signals: map[models.Category][]models.SignalRecord{},
	}
}

func TestProcessEntersAndFlips(t *testing.T) {
	cfg := defaultCfg(t)
	conf := &scriptedConfidence{states: []models.ConfidenceState{long(0.7), long(0.6), long(0.6), short(0.6)}}
	pub := &capturePublisher{}
	gate := risk.NewGate(cfg.Risk)
	m := &fakeMetrics{}
	p := NewTickProcessor(stubPipeline(conf), cfg.Pipeline, 100, repository.NewMemoryLedger(), pub,
		WithRiskGate(gate), WithMetrics(m))
	ctx := context.Background()

	recs, err := p.Process(ctx, tickAt(0, 100))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.ActionEnter, recs[0].Action)
	assert.Equal(t, 1, gate.OpenPositions())

	for i := 1; i <= 2; i++ {
		recs, err = p.Process(ctx, tickAt(i, 100))
		require.NoError(t, err)
		assert.Equal(t, models.ReasonHeld, recs[0].Reason)
	}

	recs, err = p.Process(ctx, tickAt(3, 100))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.ReasonFlip, recs[0].Reason)
	assert.Equal(t, models.DirectionLong, recs[0].Direction)
	assert.Equal(t, models.ActionEnter, recs[1].Action)
	assert.Equal(t, models.DirectionShort, recs[1].Direction)
	assert.Equal(t, 0, recs[0].Seq)
	assert.Equal(t, 1, recs[1].Seq)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)

	assert.Len(t, pub.recs, 5)
	assert.Equal(t, 5, m.decisions)
	assert.Equal(t, 1, gate.OpenPositions())

	pos := p.Positions()
	require.Len(t, pos, 1)
	assert.Equal(t, models.DirectionShort, pos[0].Direction)
}

func TestProcessDegradesOnDataError(t *testing.T) {
	cfg := defaultCfg(t)
	pipe := stubPipeline(&scriptedConfidence{states: []models.ConfidenceState{long(0.7)}})
	pipe.Aggregator = stubAggregator{err: models.NewDataError("signals", "missing required signal")}
	m := &fakeMetrics{}
	p := NewTickProcessor(pipe, cfg.Pipeline, 100, repository.NewMemoryLedger(), &capturePublisher{}, WithMetrics(m))

	recs, err := p.Process(context.Background(), tickAt(0, 100))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.ActionHold, recs[0].Action)
	assert.Equal(t, models.ReasonDataError, recs[0].Reason)
	assert.Contains(t, recs[0].Error, "missing required signal")
	assert.Equal(t, 1, m.errors["data"])
}

func TestProcessRecoversFromPanics(t *testing.T) {
	cfg := defaultCfg(t)
	pipe := stubPipeline(&scriptedConfidence{states: []models.ConfidenceState{long(0.7)}})
	pipe.Classifier = stubClassifier{panics: true}
	m := &fakeMetrics{}
	p := NewTickProcessor(pipe, cfg.Pipeline, 100, repository.NewMemoryLedger(), &capturePublisher{}, WithMetrics(m))

	recs, err := p.Process(context.Background(), tickAt(0, 100))
	require.NoError(t, err)
	assert.Equal(t, models.ReasonDataError, recs[0].Reason)
	assert.Contains(t, recs[0].Error, "panic")
	assert.Equal(t, 1, m.errors["compute"])
}

func TestProcessRejectsMissingSymbol(t *testing.T) {
	cfg := defaultCfg(t)
	p := NewTickProcessor(stubPipeline(&scriptedConfidence{states: []models.ConfidenceState{long(0.7)}}),
		cfg.Pipeline, 100, repository.NewMemoryLedger(), &capturePublisher{})

	_, err := p.Process(context.Background(), models.SignalContext{})
	require.Error(t, err)
	assert.True(t, models.IsDataError(err))
}

func TestProcessIDsAreDeterministic(t *testing.T) {
	cfg := defaultCfg(t)
	run := func() []string {
		conf := &scriptedConfidence{states: []models.ConfidenceState{long(0.7)}}
		p := NewTickProcessor(stubPipeline(conf), cfg.Pipeline, 100, repository.NewMemoryLedger(), &capturePublisher{})
		var ids []string
		for i := 0; i < 3; i++ {
			recs, err := p.Process(context.Background(), tickAt(i, 100))
			require.NoError(t, err)
			for _, r := range recs {
				ids = append(ids, r.ID)
			}
		}
		return ids
	}
	assert.Equal(t, run(), run())
}

func TestProcessSavesSnapshotAndSurvivesPublishErrors(t *testing.T) {
	cfg := defaultCfg(t)
	store := repository.NewCacheSnapshotStore(cache.NewMemoryCache(), time.Hour)
	m := &fakeMetrics{}
	p := NewTickProcessor(stubPipeline(&scriptedConfidence{states: []models.ConfidenceState{long(0.7)}}),
		cfg.Pipeline, 100, repository.NewMemoryLedger(), &capturePublisher{err: errors.New("broker down")},
		WithSnapshotStore(store), WithMetrics(m))

	recs, err := p.Process(context.Background(), tickAt(0, 100))
	require.NoError(t, err)
	assert.Equal(t, 1, m.errors["publish"])

	latest, err := store.Latest(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, recs[0].ID, latest.ID)
}

func registeredSignals(up float64) map[models.Category][]models.SignalRecord {
	r := func(name string) models.SignalRecord {
		return models.SignalRecord{Name: name, DirectionProb: models.DirectionProb{Up: up, Down: 1 - up}, Confidence: 1}
	}
	return map[models.Category][]models.SignalRecord{
		models.CategoryFlow:           {r("ofi"), r("cvd"), r("whale_flow")},
		models.CategoryVolatility:     {r("rv_z"), r("atr_z")},
		models.CategoryMicrostructure: {r("book_imbalance"), r("spread_z")},
		models.CategoryCrossAsset:     {r("btc_lead"), r("funding_basis")},
	}
}

func TestProcessWithRealPipelineStaysBounded(t *testing.T) {
	cfg := defaultCfg(t)
	pc := cfg.Pipeline
	pipe := Pipeline{
		Aggregator: signals.NewAggregator(pc.Signals),
		Classifier: regime.NewClassifier(pc.Regime),
		Drift:      drift.NewDetector(pc.Drift),
		Confidence: confidence.NewEngine(pc.Weights, pc.Confidence),
		Sizer:      sizing.NewSizer(pc.Sizing),
	}
	p := NewTickProcessor(pipe, pc, cfg.History.Lookback, repository.NewMemoryLedger(), &capturePublisher{})

	closes := make([]float64, 0, 200)
	for i := 0; i < 200; i++ {
		closes = append(closes, 100+float64(i%11)*0.3)
	}
	for _, up := range []float64{0.5, 0.9, 0.1} {
		sc := tickAt(0, closes[len(closes)-1])
		sc.Closes = closes
		sc.Signals = registeredSignals(up)
		recs, err := p.Process(context.Background(), sc)
		require.NoError(t, err)
		for _, r := range recs {
			assert.Empty(t, r.Error)
			assert.GreaterOrEqual(t, r.Confidence.FinalConfidence, 0.0)
			assert.LessOrEqual(t, r.Confidence.FinalConfidence, 1.0)
			assert.GreaterOrEqual(t, r.SizeMultiplier, 0.0)
		}
	}

	sc := tickAt(1, 100)
	sc.Signals = registeredSignals(0.5)
	recs, err := p.Process(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, recs[0].Regime.InsufficientData)
	assert.True(t, recs[0].Drift.InsufficientData)
}

func TestSignalTicksHandler(t *testing.T) {
	cfg := defaultCfg(t)
	pub := &capturePublisher{}
	p := NewTickProcessor(stubPipeline(&scriptedConfidence{states: []models.ConfidenceState{long(0.7)}}),
		cfg.Pipeline, 100, repository.NewMemoryLedger(), pub)
	m := &fakeMetrics{}
	h := NewSignalTicksHandler("chloe.signals", p, m)
	ctx := context.Background()

	assert.Equal(t, "chloe.signals", h.Topic())

	err := h.Handle(ctx, []byte("{not json"))
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Equal(t, 1, m.errors["consumer_unmarshal"])

	err = h.Handle(ctx, []byte(`{"ts":"2026-03-01T00:00:00Z","signals":{}}`))
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Equal(t, 1, m.errors["consumer_validate"])

	b, err := json.Marshal(tickAt(0, 100))
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, b))
	assert.Len(t, pub.recs, 1)
}

func TestReplayFillsAndLedgersTrades(t *testing.T) {
	cfg := defaultCfg(t)
	conf := &scriptedConfidence{states: []models.ConfidenceState{long(0.7), long(0.6), long(0.6), long(0.9), long(0.5)}}
	ledger := repository.NewMemoryLedger()
	p := NewTickProcessor(stubPipeline(conf), cfg.Pipeline, 100, ledger, &capturePublisher{})
	rp := NewReplayer(p, ledger, cfg.Replay.ScratchBand, nil)

	var in bytes.Buffer
	for i, price := range []float64{100, 101, 102, 103} {
		b, err := json.Marshal(tickAt(i, price))
		require.NoError(t, err)
		in.Write(b)
		in.WriteByte('\n')
		if i == 1 {
			in.WriteString("garbage\n")
		}
	}

	var out bytes.Buffer
	st, err := rp.Run(context.Background(), &in, &out)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Ticks)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, 1, st.Exits)
	assert.Equal(t, 1, st.Wins)
	assert.InDelta(t, 0.03, st.SumPct, 1e-12)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	var last models.DecisionRecord
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &last))
	assert.Equal(t, models.ReasonTakeProfit, last.Reason)

	trades, err := ledger.Snapshot(context.Background(), "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.RegimeTrendUp, trades[0].EntryRegime)
	assert.Equal(t, 0.7, trades[0].EntryConfidence)
	assert.InDelta(t, 0.03, trades[0].RealizedPct, 1e-12)
	assert.False(t, trades[0].IsScratch)
}
