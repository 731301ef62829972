package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
)

func TestDefaultIsValid(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.InDelta(t, 1.0, c.Pipeline.Weights.Sum(), WeightSumTolerance)
	assert.True(t, c.Pipeline.Decision.AllowOpens)
	assert.Equal(t, 0.58, c.Pipeline.Decision.Default.EntryMinConfidence)
	assert.Len(t, c.Pipeline.Sizing.Bands, 4)
	assert.Len(t, c.Pipeline.Signals.Registry, len(models.Categories))
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	chop := c.Pipeline.Decision.For(models.RegimeChop)
	assert.Equal(t, 0.65, chop.EntryMinConfidence)
	assert.Equal(t, 24, chop.DecayBars)
	assert.Equal(t, 0.70, chop.StopLossConf)

	trend := c.Pipeline.Decision.For(models.RegimeTrendUp)
	assert.Equal(t, c.Pipeline.Decision.Default, trend)
}

func assertConfigError(t *testing.T, err error, key string) {
	t.Helper()
	require.Error(t, err)
	var ce *models.ConfigError
	require.True(t, errors.As(err, &ce), "want ConfigError, got %v", err)
	assert.Contains(t, ce.Key, key)
}

func TestParseRejectsBadWeightSum(t *testing.T) {
	_, err := Parse([]byte(`
pipeline:
  weights: {flow: 0.5, volatility: 0.25, microstructure: 0.20, cross_asset: 0.15}
`))
	assertConfigError(t, err, "pipeline.weights")
}

func TestParseRejectsUnorderedBands(t *testing.T) {
	_, err := Parse([]byte(`
pipeline:
  sizing:
    bands:
      - {min: 0.6, mult: 1}
      - {min: 0.3, mult: 0.5}
`))
	assertConfigError(t, err, "pipeline.sizing.bands")
}

func TestParseKeepsConfiguredRegistryAsWritten(t *testing.T) {
	c, err := Parse([]byte(`
pipeline:
  signals:
    registry:
      flow:
        - {name: ofi, required: true}
  sizing:
    bands:
      - {min: 0, mult: 0}
      - {min: 0.5, mult: 1}
`))
	require.NoError(t, err)

	assert.Equal(t, map[models.Category][]RegistryEntry{
		models.CategoryFlow: {{Name: "ofi", Required: true}},
	}, c.Pipeline.Signals.Registry)
	assert.Equal(t, []SizeBand{{Min: 0, Mult: 0}, {Min: 0.5, Mult: 1}}, c.Pipeline.Sizing.Bands)
}

func TestParseDefaultsRegistryWhenOmitted(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	assert.Len(t, c.Pipeline.Signals.Registry, len(models.Categories))
	assert.Len(t, c.Pipeline.Sizing.Bands, 4)
}

func TestParseRejectsUnknownRegimeOverride(t *testing.T) {
	_, err := Parse([]byte(`
pipeline:
  decision:
    regimes:
      sideways: {entry_min_confidence: 0.6}
`))
	assertConfigError(t, err, "pipeline.decision.regimes")
}

func TestParseRejectsOutOfRangeThreshold(t *testing.T) {
	_, err := Parse([]byte(`
pipeline:
  decision:
    regimes:
      chop: {take_profit_conf: 1.5}
`))
	assertConfigError(t, err, "take_profit_conf")
}

func TestParseRejectsFieldValidation(t *testing.T) {
	_, err := Parse([]byte(`
log:
  level: loud
`))
	assertConfigError(t, err, "Level")
}

func TestKafkaRequiresBrokers(t *testing.T) {
	_, err := Parse([]byte(`
kafka:
  enabled: true
`))
	assertConfigError(t, err, "kafka.brokers")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o600))

	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HISTORY_BACKEND", "clickhouse")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "clickhouse", c.History.Backend)
	assert.Equal(t, "test", c.Environment)
}
