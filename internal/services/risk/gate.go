package risk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/service"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
)

var (
	ErrDirectionDisabled = errors.New("direction disabled")
	ErrSpread            = errors.New("spread too wide")
	ErrLatency           = errors.New("feed latency too high")
	ErrExposure          = errors.New("max open positions reached")
)

// Gate is the default pretrade predicate: per-side switches, venue checks and a
// cap on concurrently open symbols. It is safe for concurrent use.
type Gate struct {
	cfg config.RiskConfig

	mu   sync.RWMutex
	open map[string]models.Direction
}

var _ service.RiskGate = (*Gate)(nil)

func NewGate(cfg config.RiskConfig) *Gate {
	return &Gate{cfg: cfg, open: make(map[string]models.Direction)}
}

// Allow runs the pretrade checks for an entry on side d. When the exposure cap
// is on, a passing call reserves the symbol's slot.
func (g *Gate) Allow(symbol string, d models.Direction, p models.Pretrade) error {
	if (d == models.DirectionLong && !g.cfg.AllowLong) || (d == models.DirectionShort && !g.cfg.AllowShort) {
		return fmt.Errorf("%s %s: %w", symbol, d, ErrDirectionDisabled)
	}
	if g.cfg.MaxSpreadBps > 0 && p.SpreadBps > g.cfg.MaxSpreadBps {
		return fmt.Errorf("%s spread %.2fbps > %.2fbps: %w", symbol, p.SpreadBps, g.cfg.MaxSpreadBps, ErrSpread)
	}
	if g.cfg.MaxLatencyMs > 0 && p.LatencyMs > g.cfg.MaxLatencyMs {
		return fmt.Errorf("%s latency %.0fms > %.0fms: %w", symbol, p.LatencyMs, g.cfg.MaxLatencyMs, ErrLatency)
	}
	if g.cfg.MaxOpenPositions > 0 {
		g.mu.Lock()
		defer g.mu.Unlock()
		n := len(g.open)
		if _, self := g.open[symbol]; self {
			n--
		}
		if n >= g.cfg.MaxOpenPositions {
			return fmt.Errorf("%s: %d open: %w", symbol, n, ErrExposure)
		}
		// the slot is held until Track confirms or releases it
		g.open[symbol] = d
	}
	return nil
}

// Track records the position state of a symbol after its tick. A flat state
// releases any slot Allow reserved.
func (g *Gate) Track(pos models.PositionState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pos.IsOpen() {
		g.open[pos.Symbol] = pos.Direction
		return
	}
	delete(g.open, pos.Symbol)
}

// OpenPositions returns the number of symbols currently holding exposure.
func (g *Gate) OpenPositions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.open)
}
