// Package api exposes patterns, signals and pattern runs over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"equity-screener/internal/analysis/scoring"
	"equity-screener/internal/config"
	"equity-screener/internal/logging"
	"equity-screener/internal/models"
)

// PatternService is the pattern definition store.
type PatternService interface {
	Get(ctx context.Context, patternID string) (*models.Pattern, error)
	Create(ctx context.Context, p models.Pattern) (*models.Pattern, error)
	Update(ctx context.Context, patternID string, update models.PatternUpdate) (*models.Pattern, error)
	Delete(ctx context.Context, patternID string) error
	List(ctx context.Context, includeCustom bool) ([]models.Pattern, error)
	ListByCategory(ctx context.Context, category string) ([]models.Pattern, error)
	Counts(ctx context.Context) (models.PatternCounts, error)
	ClearCache(ctx context.Context, patternID string) (int64, error)
}

// PatternRunner runs patterns.
type PatternRunner interface {
	RunPattern(ctx context.Context, opts scoring.RunOptions) ([]models.MatchResult, error)
}

// SignalService reads and detects signals.
type SignalService interface {
	Query(ctx context.Context, filter models.SignalFilter) ([]models.SignalRecord, error)
	TopOpportunities(ctx context.Context, limit int) ([]models.SignalRecord, error)
	SignalsByType(ctx context.Context, category models.SignalCategory, minStrength float64, limit int) ([]models.SignalRecord, error)
	SignalsForStock(ctx context.Context, stockID string, activeOnly bool) ([]models.SignalRecord, error)
	DetectForStock(ctx context.Context, stockID string, store bool) ([]models.Signal, error)
}

// HealthChecker reports backing store health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        config.APIConfig
	patterns   PatternService
	runner     PatternRunner
	signals    SignalService
	health     HealthChecker
	logger     zerolog.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg config.APIConfig, patterns PatternService, runner PatternRunner,
	signals SignalService, health HealthChecker, logger zerolog.Logger) *Server {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		cfg:      cfg,
		patterns: patterns,
		runner:   runner,
		signals:  signals,
		health:   health,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)

	patterns := api.Group("/patterns")
	{
		patterns.GET("", s.handleListPatterns)
		patterns.GET("/counts", s.handlePatternCounts)
		patterns.GET("/:id", s.handleGetPattern)
		patterns.POST("", s.handleCreatePattern)
		patterns.PUT("/:id", s.handleUpdatePattern)
		patterns.DELETE("/:id", s.handleDeletePattern)
		patterns.POST("/:id/run", s.handleRunPattern)
		patterns.DELETE("/:id/cache", s.handleClearCache)
	}

	signals := api.Group("/signals")
	{
		signals.GET("", s.handleListSignals)
		signals.GET("/top", s.handleTopSignals)
		signals.GET("/types/:category", s.handleSignalsByType)
	}

	api.GET("/stocks/:id/signals", s.handleStockSignals)
	api.POST("/stocks/:id/signals/detect", s.handleDetectStock)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
		"time":     time.Now().Format(time.RFC3339),
	})
}

// requestLogger attaches a per-request logger to the request context and
// logs the outcome once the handler returns.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logging.WithOperation(logger, c.Request.Method+" "+c.FullPath()).
			With().Str("request_id", uuid.NewString()).Logger()
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), reqLogger))
		c.Next()

		evt := reqLogger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = reqLogger.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
