package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Format: "json", Output: "stdout"})
	require.Error(t, err)
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.With(String("symbol", "ETHUSDT")).Info("decision",
		String("action", "enter"),
		Float64("confidence", 0.6365),
		Int("bars_open", 0),
		Bool("zero_size", false),
		Error(errors.New("boom")),
	)
	l.Debug("hidden")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"symbol":"ETHUSDT"`)
	assert.Contains(t, out, `"confidence":0.6365`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() { l.Error("x", Any("k", 1)) })
}
