package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"equity-screener/internal/models"
	"equity-screener/pkg/utils"
)

func addSignalCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "signals",
		Aliases: []string{"sig"},
		Short:   "Detect and query technical signals",
	}

	cmd.AddCommand(newSignalsDetectCmd(app))
	cmd.AddCommand(newSignalsListCmd(app))
	cmd.AddCommand(newSignalsTopCmd(app))
	cmd.AddCommand(newSignalsExpireCmd(app))

	rootCmd.AddCommand(cmd)
}

func newSignalsDetectCmd(app *App) *cobra.Command {
	var (
		stockID string
		limit   int
		noSkip  bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run signal detection",
		Long: `Run every detector over the latest bar of each active stock.

Expired signals are deactivated first. With --stock only that stock is
processed and its signals are printed.`,
		Example: `  screener signals detect
  screener signals detect --limit 50 --no-skip
  screener signals detect --stock BBCA --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}

			if stockID != "" {
				stockID = strings.ToUpper(stockID)
				detected, err := app.Signals.DetectForStock(ctx, stockID, !dryRun)
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(map[string]interface{}{"stock_id": stockID, "signals": detected})
				}
				if len(detected) == 0 {
					output.Warning("No signals detected for %s", stockID)
					return nil
				}
				output.Bold("Signals for %s", stockID)
				t := NewTable(output, "SIGNAL", "TYPE", "DIRECTION", "STRENGTH", "DATE")
				for _, s := range detected {
					t.AddRow(s.Name, string(s.Category), output.Direction(s.Direction),
						output.Strength(s.Strength), s.Date.Format(models.DateLayout))
				}
				t.Render()
				return nil
			}

			opts := app.Signals.DefaultOptions()
			opts.Limit = limit
			if noSkip {
				opts.SkipExisting = false
			}

			stats, err := app.Signals.DetectAll(ctx, opts)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(stats)
			}

			output.Success("✓ Detection run %s complete", stats.RunID)
			output.Printf("  Stocks:      %d\n", stats.TotalStocks)
			output.Printf("  Successful:  %d\n", stats.Successful)
			output.Printf("  Skipped:     %d\n", stats.Skipped)
			if stats.Failed > 0 {
				output.Printf("  Failed:      %s\n", output.Red(fmt.Sprintf("%d", stats.Failed)))
			} else {
				output.Printf("  Failed:      0\n")
			}
			output.Printf("  Signals:     %d\n", stats.TotalSignals)
			output.Printf("  Deactivated: %d\n", stats.Deactivated)
			output.Dim("Took %s", stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&stockID, "stock", "", "detect a single stock")
	cmd.Flags().IntVar(&limit, "limit", 0, "process at most N stocks (0 = all)")
	cmd.Flags().BoolVar(&noSkip, "no-skip", false, "re-detect stocks that already have active signals")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "with --stock, detect without storing")

	return cmd
}

func newSignalsListCmd(app *App) *cobra.Command {
	var (
		stockID     string
		category    string
		minStrength float64
		all         bool
		days        int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored signals",
		Example: `  screener signals list --stock BBCA
  screener signals list --type momentum --min-strength 60
  screener signals list --all --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			filter := models.SignalFilter{
				StockID:     strings.ToUpper(stockID),
				Category:    models.SignalCategory(category),
				MinStrength: minStrength,
				ActiveOnly:  !all,
				Limit:       limit,
			}
			if category != "" && !filter.Category.IsValid() {
				return fmt.Errorf("unknown signal type %q", category)
			}
			if days > 0 {
				filter.After = time.Now().AddDate(0, 0, -days)
			}

			if err := app.open(ctx); err != nil {
				return err
			}
			records, err := app.Signals.Query(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(records)
			}
			renderSignalRecords(output, records)
			return nil
		},
	}

	cmd.Flags().StringVar(&stockID, "stock", "", "filter by stock")
	cmd.Flags().StringVar(&category, "type", "", "filter by signal type (trend, momentum, volatility, volume)")
	cmd.Flags().Float64Var(&minStrength, "min-strength", 0, "minimum strength")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive signals")
	cmd.Flags().IntVar(&days, "days", 0, "only signals detected in the last N days")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows")

	return cmd
}

func newSignalsTopCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Strongest active signals across all stocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}
			records, err := app.Signals.TopOpportunities(ctx, limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(records)
			}
			output.Bold("Top Opportunities")
			renderSignalRecords(output, records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}

func newSignalsExpireCmd(app *App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Deactivate signals older than the expiry window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}

			var (
				n   int64
				err error
			)
			if days > 0 {
				n, err = app.Store.DeactivateOlderThan(ctx, days, time.Now())
			} else {
				n, err = app.Signals.ExpireSignals(ctx)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]int64{"deactivated": n})
			}
			output.Success("✓ Deactivated %d signals", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "expiry window in days (default: signals.expiry_days)")
	return cmd
}

func renderSignalRecords(output *Output, records []models.SignalRecord) {
	if len(records) == 0 {
		output.Dim("No signals found")
		return
	}
	t := NewTable(output, "DATE", "STOCK", "NAME", "SIGNAL", "TYPE", "DIRECTION", "STRENGTH")
	for _, r := range records {
		t.AddRow(
			r.Date.Format(models.DateLayout),
			r.StockID,
			utils.TruncateString(r.StockName, 24),
			r.Name,
			string(r.Category),
			output.Direction(r.Direction),
			output.Strength(r.Strength),
		)
	}
	t.Render()
	output.Dim("%d signals", len(records))
}
