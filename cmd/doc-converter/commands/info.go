package commands

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/doc-converter/cmd/doc-converter/ui"
	"github.com/spherical/doc-converter/internal/app"
	"github.com/spherical/doc-converter/internal/audit"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/convert"
)

var historyLimit int

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List supported conversions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs := convert.SupportedPairs()
		rows := make([][]string, 0, len(pairs))
		for _, p := range pairs {
			rows = append(rows, []string{string(p.Source), string(p.Target), p.Description})
		}
		ui.Table([]string{"Source", "Target", "Result"}, rows)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "doc-converter %s (%s) %s/%s\n", Version, Commit, runtime.GOOS, runtime.GOARCH)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversions from the audit sink",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		logger := app.NewLogger(cliLogConfig())
		auditLogger, err := audit.Open(ctx, cfg.Audit, logger)
		if err != nil {
			return err
		}
		defer auditLogger.Close()

		if cfg.Audit.Sink == "" || cfg.Audit.Sink == "none" {
			ui.Warning("No audit sink configured; set audit.sink to sql or redis")
			return nil
		}

		events, err := auditLogger.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(events))
		for _, e := range events {
			rows = append(rows, []string{
				e.OccurredAt.Local().Format(time.DateTime),
				e.SourceKind + " → " + e.TargetKind,
				ui.Status(e.Status, e.Status == "no_table_found"),
				fmt.Sprintf("%d", e.PageCount),
				ui.FormatBytes(e.InputBytes),
				ui.FormatDuration(e.Duration),
			})
		}
		ui.Table([]string{"Time", "Conversion", "Status", "Pages", "Input", "Duration"}, rows)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of events to show")
	rootCmd.AddCommand(pairsCmd, versionCmd, historyCmd)
}

// cliLogConfig keeps library logs out of the way of the terminal output
// unless --verbose is set.
func cliLogConfig() config.ObservabilityConfig {
	obs := cfg.Observability
	obs.LogFormat = "console"
	if !verbose {
		obs.LogLevel = "warn"
	}
	return obs
}
