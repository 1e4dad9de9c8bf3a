package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"equity-screener/internal/analysis/scoring"
	"equity-screener/internal/models"
	"equity-screener/pkg/utils"
)

func addPatternCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "patterns",
		Aliases: []string{"pat"},
		Short:   "Manage and run screening patterns",
	}

	cmd.AddCommand(newPatternsListCmd(app))
	cmd.AddCommand(newPatternsShowCmd(app))
	cmd.AddCommand(newPatternsCountsCmd(app))
	cmd.AddCommand(newPatternsCreateCmd(app))
	cmd.AddCommand(newPatternsUpdateCmd(app))
	cmd.AddCommand(newPatternsDeleteCmd(app))
	cmd.AddCommand(newPatternsRunCmd(app))
	cmd.AddCommand(newPatternsClearCacheCmd(app))
	cmd.AddCommand(newPatternsSeedCmd(app))

	rootCmd.AddCommand(cmd)
}

func newPatternsListCmd(app *App) *cobra.Command {
	var (
		category    string
		presetsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patterns, presets first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}

			var (
				list []models.Pattern
				err  error
			)
			if category != "" {
				list, err = app.Patterns.ListByCategory(ctx, category)
			} else {
				list, err = app.Patterns.List(ctx, !presetsOnly)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(list)
			}
			if len(list) == 0 {
				output.Dim("No patterns found")
				return nil
			}
			t := NewTable(output, "ID", "NAME", "CATEGORY", "KIND", "SORT BY")
			for _, p := range list {
				kind := output.Cyan("preset")
				if !p.IsPreset {
					kind = "custom"
				}
				t.AddRow(p.ID, utils.TruncateString(p.Name, 32), p.Category, kind, p.SortBy)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only patterns in this category")
	cmd.Flags().BoolVar(&presetsOnly, "presets", false, "only preset patterns")
	return cmd
}

func newPatternsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <pattern_id>",
		Short: "Show a pattern definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}
			p, err := app.Patterns.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(p)
			}
			showPattern(output, p)
			return nil
		},
	}
}

func showPattern(output *Output, p *models.Pattern) {
	kind := "custom"
	if p.IsPreset {
		kind = "preset"
	}
	output.Bold("%s (%s)", p.Name, p.ID)
	output.Printf("  Category:  %s\n", p.Category)
	output.Printf("  Kind:      %s, created by %s\n", kind, p.CreatedBy)
	output.Printf("  Sort by:   %s\n", p.SortBy)
	if p.Description != "" {
		output.Dim("  %s", p.Description)
	}

	if p.HasFundamental() {
		output.Println()
		output.Bold("Fundamental criteria")
		metrics := make([]string, 0, len(p.FundamentalCriteria))
		for m := range p.FundamentalCriteria {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
		for _, m := range metrics {
			output.Printf("  %-20s %s\n", m, formatBound(p.FundamentalCriteria[m]))
		}
	}

	if p.HasTechnical() {
		output.Println()
		output.Bold("Technical criteria")
		signals := "any"
		if len(p.TechnicalCriteria.Signals) > 0 {
			signals = strings.Join(p.TechnicalCriteria.Signals, ", ")
		}
		output.Printf("  Signals:      %s\n", signals)
		output.Printf("  Min strength: %.0f\n", p.TechnicalCriteria.MinSignalStrength)
	}
}

func formatBound(b models.Bound) string {
	lo, hi := "-inf", "+inf"
	if b.Min != nil {
		lo = utils.FormatMetric(*b.Min)
	}
	if b.Max != nil && *b.Max != 999 {
		hi = utils.FormatMetric(*b.Max)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}

func newPatternsCountsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Count preset and custom patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}
			counts, err := app.Patterns.Counts(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(counts)
			}
			output.Printf("Preset: %d  Custom: %d  Total: %d\n", counts.Preset, counts.Custom, counts.Total)
			return nil
		},
	}
}

func newPatternsCreateCmd(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create --file <pattern.yaml>",
		Short: "Create a custom pattern from a YAML or JSON file",
		Example: `  screener patterns create --file quality_dip.yaml

  # quality_dip.yaml
  pattern_id: quality_dip
  name: Quality Dip
  category: value
  fundamental_criteria:
    roe_percent: {min: 15}
    debt_to_equity: {max: 1}
  technical_criteria:
    signals: [RSI Oversold]
    min_signal_strength: 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			var p models.Pattern
			if err := readPatternFile(file, &p); err != nil {
				return err
			}

			if err := app.open(ctx); err != nil {
				return err
			}
			created, err := app.Patterns.Create(ctx, p)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(created)
			}
			output.Success("✓ Created pattern %s", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "pattern definition file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPatternsUpdateCmd(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update <pattern_id> --file <update.yaml>",
		Short: "Update a custom pattern; only fields present in the file change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			var update models.PatternUpdate
			if err := readPatternFile(file, &update); err != nil {
				return err
			}
			if update.IsEmpty() {
				return fmt.Errorf("%s sets no pattern fields", file)
			}

			if err := app.open(ctx); err != nil {
				return err
			}
			updated, err := app.Patterns.Update(ctx, args[0], update)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(updated)
			}
			output.Success("✓ Updated pattern %s", updated.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "update file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readPatternFile decodes a YAML file into v. JSON input is accepted too.
func readPatternFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func newPatternsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <pattern_id>",
		Short: "Delete a custom pattern and its cached results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}
			if err := app.Patterns.Delete(ctx, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Deleted pattern %s", args[0])
			return nil
		},
	}
}

func newPatternsRunCmd(app *App) *cobra.Command {
	var (
		noCache bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "run <pattern_id>",
		Short: "Screen stocks against a pattern",
		Args:  cobra.ExactArgs(1),
		Example: `  screener patterns run garp
  screener patterns run oversold_bounce --no-cache --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}

			results, err := app.Scoring.RunPattern(ctx, scoring.RunOptions{
				PatternID: args[0],
				UseCache:  !noCache,
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"pattern_id": args[0],
					"count":      len(results),
					"results":    results,
				})
			}
			renderMatches(output, args[0], results)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "recompute instead of reading cached results")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default: patterns.default_limit)")
	return cmd
}

func renderMatches(output *Output, patternID string, results []models.MatchResult) {
	if len(results) == 0 {
		output.Warning("No stocks match %s", patternID)
		return
	}
	t := NewTable(output, "#", "STOCK", "MATCH", "FUND", "TECH", "TOP SIGNAL")
	for i, r := range results {
		top := "-"
		if len(r.MatchedSignals) > 0 {
			s := r.MatchedSignals[0]
			top = fmt.Sprintf("%s (%.0f)", s.Name, s.Strength)
		}
		t.AddRow(
			fmt.Sprintf("%d", i+1),
			r.StockID,
			output.Strength(r.MatchScore),
			utils.FormatScore(r.FundamentalScore),
			utils.FormatScore(r.TechnicalScore),
			top,
		)
	}
	t.Render()
	output.Dim("%d matches", len(results))
}

func newPatternsClearCacheCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear-cache [pattern_id]",
		Short: "Drop cached results for one pattern, or all with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			id := ""
			if len(args) == 1 {
				id = args[0]
			} else if !all {
				return fmt.Errorf("pass a pattern id or --all")
			}

			if err := app.open(ctx); err != nil {
				return err
			}
			n, err := app.Patterns.ClearCache(ctx, id)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"cleared": n})
			}
			output.Success("✓ Cleared %d cached results", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "clear every pattern's cache")
	return cmd
}

func newPatternsSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert or refresh the preset patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if err := app.open(ctx); err != nil {
				return err
			}
			n, err := app.Patterns.SeedPresets(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"seeded": n})
			}
			output.Success("✓ Seeded %d preset patterns", n)
			return nil
		},
	}
}
