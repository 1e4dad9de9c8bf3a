// Package scheduler runs periodic signal detection and pattern refreshes.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"equity-screener/internal/analysis/scoring"
	"equity-screener/internal/analysis/signals"
	"equity-screener/internal/config"
	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/logging"
	"equity-screener/internal/models"
	"equity-screener/pkg/utils"
)

// Detector runs batch signal detection.
type Detector interface {
	DetectAll(ctx context.Context, opts signals.DetectOptions) (signals.BatchStats, error)
	ExpireSignals(ctx context.Context) (int64, error)
	DefaultOptions() signals.DetectOptions
}

// PatternRunner recomputes one pattern.
type PatternRunner interface {
	RunPattern(ctx context.Context, opts scoring.RunOptions) ([]models.MatchResult, error)
}

// PatternLister lists the patterns to refresh.
type PatternLister interface {
	List(ctx context.Context, includeCustom bool) ([]models.Pattern, error)
}

// RefreshSummary reports one refresh cycle.
type RefreshSummary struct {
	Detection      signals.BatchStats
	Patterns       int
	PatternsFailed int
	Duration       time.Duration
}

// Scheduler owns the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	detector Detector
	runner   PatternRunner
	patterns PatternLister
	hours    utils.MarketHours
	cfg      config.SchedulerConfig
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// New creates a scheduler. Jobs are registered by Run. Without a configured
// session the default exchange hours apply.
func New(cfg config.SchedulerConfig, detector Detector, runner PatternRunner, patterns PatternLister, logger zerolog.Logger) (*Scheduler, error) {
	hours := utils.DefaultMarketHours()
	if cfg.Timezone != "" || cfg.MarketOpen != "" || cfg.MarketClose != "" {
		var err error
		hours, err = utils.NewMarketHours(cfg.Timezone, cfg.MarketOpen, cfg.MarketClose)
		if err != nil {
			return nil, fmt.Errorf("market hours: %w", err)
		}
	}

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(hours.Location)),
		detector: detector,
		runner:   runner,
		patterns: patterns,
		hours:    hours,
		cfg:      cfg,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
		ctx:      context.Background(),
	}, nil
}

// Register adds the intraday, end-of-day and expiry jobs.
func (s *Scheduler) Register() error {
	if s.cfg.IntradaySpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.IntradaySpec, s.intradayJob); err != nil {
			return fmt.Errorf("register intraday job: %w", err)
		}
	}
	if s.cfg.EODSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.EODSpec, s.eodJob); err != nil {
			return fmt.Errorf("register end-of-day job: %w", err)
		}
	}
	if s.cfg.ExpirySpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.ExpirySpec, s.expiryJob); err != nil {
			return fmt.Errorf("register expiry job: %w", err)
		}
	}
	return nil
}

// Run registers the jobs, starts the cron loop and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	if err := s.Register(); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("intraday", s.cfg.IntradaySpec).
		Str("eod", s.cfg.EODSpec).
		Str("expiry", s.cfg.ExpirySpec).
		Str("timezone", s.hours.Location.String()).
		Msg("Scheduler started")

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) intradayJob() {
	now := s.now()
	if !s.hours.IsOpenAt(now) {
		log := logging.WithOperation(s.logger, "intraday_refresh")
		log.Debug().Time("next_open", s.hours.NextOpen(now)).Msg("Market closed, skipping intraday refresh")
		return
	}
	s.runRefresh("intraday")
}

func (s *Scheduler) eodJob() {
	s.runRefresh("eod")
}

func (s *Scheduler) expiryJob() {
	log := logging.WithOperation(s.logger, "expire_signals")
	n, err := s.detector.ExpireSignals(s.ctx)
	if err != nil {
		log.Error().Err(err).Msg("Signal expiry failed")
		return
	}
	log.Info().Int64("deactivated", n).Msg("Expired old signals")
}

func (s *Scheduler) runRefresh(trigger string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Str("trigger", trigger).Msg("Refresh already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if _, err := s.Refresh(s.ctx); err != nil {
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("Refresh failed")
	}
}

// Refresh runs batch detection over every stock and then recomputes and
// caches every pattern. A failing pattern is logged and counted.
func (s *Scheduler) Refresh(ctx context.Context) (RefreshSummary, error) {
	start := time.Now()
	var summary RefreshSummary

	// Stocks holding active signals are re-detected so new crossovers on
	// later bars are picked up. Same-day rows are upserted by the store.
	opts := s.detector.DefaultOptions()
	opts.SkipExisting = false
	stats, err := s.detector.DetectAll(ctx, opts)
	summary.Detection = stats
	if err != nil {
		return summary, apperrors.Wrapf(err, "detect signals (run %s)", stats.RunID)
	}

	patterns, err := s.patterns.List(ctx, true)
	if err != nil {
		return summary, fmt.Errorf("list patterns: %w", err)
	}

	for _, p := range patterns {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log := logging.WithPattern(s.logger, p.ID)
		if _, err := s.runner.RunPattern(ctx, scoring.RunOptions{PatternID: p.ID, UseCache: false}); err != nil {
			summary.PatternsFailed++
			log.Error().Err(err).Msg("Pattern refresh failed")
			continue
		}
		summary.Patterns++
	}

	summary.Duration = time.Since(start)
	s.logger.Info().
		Str("run_id", stats.RunID).
		Int("signals", stats.TotalSignals).
		Int("patterns", summary.Patterns).
		Int("patterns_failed", summary.PatternsFailed).
		Dur("duration", summary.Duration).
		Msg("Refresh complete")
	return summary, nil
}
