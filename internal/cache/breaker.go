package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
	"equity-screener/internal/store"
)

// BreakerState is the state of a Guarded cache's circuit.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"    // backend in use
	BreakerOpen     BreakerState = "OPEN"      // backend skipped
	BreakerHalfOpen BreakerState = "HALF_OPEN" // one trial call allowed
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that open the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the breaker settings used for Redis.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

// Guarded wraps a result cache backend with a circuit breaker. While the
// circuit is open every call fails fast with ErrCacheUnavailable, which
// the pattern engine treats as a miss on read and ignores on write.
type Guarded struct {
	backend store.ResultCache
	cfg     BreakerConfig
	logger  zerolog.Logger
	now     func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	openedAt    time.Time
	rejected    int64
	trialActive bool
}

// NewGuarded wraps backend.
func NewGuarded(backend store.ResultCache, cfg BreakerConfig, logger zerolog.Logger) *Guarded {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Guarded{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With().Str("component", "cache_breaker").Logger(),
		now:     time.Now,
		state:   BreakerClosed,
	}
}

// GetCached reads through the breaker. A miss is not a failure.
func (g *Guarded) GetCached(ctx context.Context, patternID string, maxAge time.Duration) ([]models.MatchResult, bool, error) {
	if err := g.allow(); err != nil {
		return nil, false, err
	}
	results, ok, err := g.backend.GetCached(ctx, patternID, maxAge)
	g.record(err)
	return results, ok, err
}

// PutCached writes through the breaker.
func (g *Guarded) PutCached(ctx context.Context, patternID string, results []models.MatchResult) error {
	if err := g.allow(); err != nil {
		return err
	}
	err := g.backend.PutCached(ctx, patternID, results)
	g.record(err)
	return err
}

// ClearCache clears through the breaker.
func (g *Guarded) ClearCache(ctx context.Context, patternID string) (int64, error) {
	if err := g.allow(); err != nil {
		return 0, err
	}
	n, err := g.backend.ClearCache(ctx, patternID)
	g.record(err)
	return n, err
}

// State returns the current circuit state.
func (g *Guarded) State() BreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Rejected returns how many calls were refused while open.
func (g *Guarded) Rejected() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rejected
}

func (g *Guarded) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case BreakerOpen:
		if g.now().Sub(g.openedAt) < g.cfg.Cooldown {
			g.rejected++
			return fmt.Errorf("%w: circuit open", apperrors.ErrCacheUnavailable)
		}
		g.transition(BreakerHalfOpen)
		g.trialActive = true
	case BreakerHalfOpen:
		if g.trialActive {
			g.rejected++
			return fmt.Errorf("%w: trial call in flight", apperrors.ErrCacheUnavailable)
		}
		g.trialActive = true
	}
	return nil
}

func (g *Guarded) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		if g.state == BreakerHalfOpen {
			g.transition(BreakerClosed)
		}
		g.failures = 0
		g.trialActive = false
		return
	}

	switch g.state {
	case BreakerClosed:
		g.failures++
		if g.failures >= g.cfg.FailureThreshold {
			g.open(err)
		}
	case BreakerHalfOpen:
		g.open(err)
	}
}

func (g *Guarded) open(cause error) {
	g.transition(BreakerOpen)
	g.openedAt = g.now()
	g.logger.Warn().Err(cause).Dur("cooldown", g.cfg.Cooldown).Msg("Results cache circuit opened")
}

func (g *Guarded) transition(state BreakerState) {
	if g.state != state {
		g.logger.Debug().Str("from", string(g.state)).Str("to", string(state)).Msg("Circuit state change")
	}
	g.state = state
	g.failures = 0
	g.trialActive = false
}
