package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"equity-screener/internal/analysis/indicators"
	"equity-screener/internal/analysis/scoring"
	"equity-screener/internal/analysis/series"
	"equity-screener/internal/analysis/signals"
	"equity-screener/internal/cache"
	"equity-screener/internal/config"
	"equity-screener/internal/logging"
	"equity-screener/internal/patterns"
	"equity-screener/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. Config and Logger are set before
// any command runs; the rest is built on first use by open.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Store    *store.SQLiteStore
	Results  store.ResultCache
	Patterns *patterns.Service
	Signals  *signals.Engine
	Scoring  *scoring.Engine

	closers []func() error
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "screener",
		Short: "Equity screener - technical signals and fundamental pattern matching",
		Long: `Equity Screener detects technical signals from stored price and indicator
history and ranks stocks against screening patterns that combine
fundamental bounds with recent signals.

Use 'screener signals detect' to refresh signals, 'screener patterns run <id>'
to screen, and 'screener serve' to expose the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/equity-screener)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addSignalCommands(rootCmd, app)
	addPatternCommands(rootCmd, app)
	addServeCommands(rootCmd, app)

	return rootCmd
}

// open builds the store, cache backend and engines. It is idempotent.
func (a *App) open(ctx context.Context) error {
	if a.Store != nil {
		return nil
	}

	st, err := store.NewSQLiteStore(a.Config.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)
	a.Logger.Debug().Str("path", a.Config.Database.Path).Msg("SQLite store initialized")

	a.Results = st
	if a.Config.Cache.Backend == "redis" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      a.Config.Cache.RedisAddr,
			Password:  a.Config.Cache.RedisPassword,
			DB:        a.Config.Cache.RedisDB,
			KeyPrefix: a.Config.Cache.KeyPrefix,
			TTL:       a.Config.Patterns.CacheMaxAge,
		}, a.Logger)
		if err != nil {
			return err
		}
		a.Results = cache.NewGuarded(rc, cache.DefaultBreakerConfig(), a.Logger)
		a.closers = append(a.closers, rc.Close)
		a.Logger.Debug().Str("addr", a.Config.Cache.RedisAddr).Msg("Redis results cache initialized")
	}

	sc := a.Config.Signals
	provider := series.NewProvider(st, indicators.NewDefaultEngine(sc.Workers), series.ProviderConfig{
		HistoryDays:    sc.HistoryDays,
		ComputeMissing: sc.ComputeMissingIndicators,
	}, a.Logger)

	a.Signals = signals.NewEngine(provider, st, signals.EngineConfigFrom(sc), a.Logger)
	a.Patterns = patterns.NewService(st, a.Results, a.Logger)
	a.Scoring = scoring.NewEngine(scoring.EngineConfigFrom(a.Config.Patterns), st, st, st, a.Results, a.Logger)

	if a.Config.Patterns.SeedPresets {
		n, err := a.Patterns.SeedPresets(ctx)
		if err != nil {
			return fmt.Errorf("seeding presets: %w", err)
		}
		a.Logger.Debug().Int("presets", n).Msg("Preset patterns seeded")
	}
	return nil
}

// Close releases everything open acquired, last opened first.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Equity Screener v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				cfg := app.Config
				if cfg.Cache.RedisPassword != "" {
					cfg.Cache.RedisPassword = "****"
				}
				return output.JSON(cfg)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": dir})
			} else {
				output.Println(dir)
			}
		},
	})

	return cmd
}

func showConfig(output *Output, cfg config.Config) {
	output.Bold("Database")
	output.Printf("  Path:             %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Signals")
	output.Printf("  Expiry:           %d days\n", cfg.Signals.ExpiryDays)
	output.Printf("  RSI bands:        %.0f / %.0f\n", cfg.Signals.RSIOversold, cfg.Signals.RSIOverbought)
	output.Printf("  Volume breakout:  %.1fx\n", cfg.Signals.VolumeBreakoutThreshold)
	output.Printf("  ADX trend:        %.0f\n", cfg.Signals.ADXTrendThreshold)
	output.Printf("  Workers:          %d\n", cfg.Signals.Workers)
	output.Println()

	output.Bold("Patterns")
	output.Printf("  Cache max age:    %s\n", cfg.Patterns.CacheMaxAge)
	output.Printf("  Default limit:    %d\n", cfg.Patterns.DefaultLimit)
	output.Printf("  Technical window: %d days\n", cfg.Patterns.TechnicalWindowDays)
	output.Printf("  Cache backend:    %s\n", cfg.Cache.Backend)
	output.Println()

	output.Bold("Service")
	output.Printf("  Listen:           %s\n", cfg.API.ListenAddr)
	output.Printf("  Scheduler:        %v (%s)\n", cfg.Scheduler.Enabled, cfg.Scheduler.Timezone)
	output.Printf("  Market hours:     %s-%s\n", cfg.Scheduler.MarketOpen, cfg.Scheduler.MarketClose)
}
