package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"equity-screener/internal/api"
	"equity-screener/internal/scheduler"
)

func addServeCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newScheduleCmd(app))
}

func newServeCmd(app *App) *cobra.Command {
	var (
		addr         string
		withSchedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted. The periodic refresh scheduler runs
alongside it when scheduler.enabled is set or --schedule is passed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.open(ctx); err != nil {
				return err
			}

			apiCfg := app.Config.API
			if addr != "" {
				apiCfg.ListenAddr = addr
			}
			server := api.NewServer(apiCfg, app.Patterns, app.Scoring, app.Signals, app.Store, app.Logger)

			var sched *scheduler.Scheduler
			if withSchedule || app.Config.Scheduler.Enabled {
				var err error
				if sched, err = app.newScheduler(); err != nil {
					return err
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(gctx)
			})
			if sched != nil {
				g.Go(func() error {
					return sched.Run(gctx)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: api.listen_addr)")
	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "also run the refresh scheduler")
	return cmd
}

func newScheduleCmd(app *App) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the periodic refresh scheduler without the API",
		Long: `Run detection and pattern recompute on the configured cron schedule.
With --once a single refresh runs immediately and the command exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.open(ctx); err != nil {
				return err
			}
			sched, err := app.newScheduler()
			if err != nil {
				return err
			}

			if !once {
				return sched.Run(ctx)
			}

			output := NewOutput(cmd)
			summary, err := sched.Refresh(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(summary)
			}
			output.Success("✓ Refresh complete")
			output.Printf("  Stocks:    %d (%d failed)\n", summary.Detection.TotalStocks, summary.Detection.Failed)
			output.Printf("  Signals:   %d\n", summary.Detection.TotalSignals)
			output.Printf("  Patterns:  %d (%d failed)\n", summary.Patterns, summary.PatternsFailed)
			output.Dim("Took %s", summary.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run one refresh now and exit")
	return cmd
}

func (a *App) newScheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(a.Config.Scheduler, a.Signals, a.Scoring, a.Patterns, a.Logger)
}
