package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	appName = "Lodestar"
	version = "v0.3.1"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd := &cobra.Command{
		Use:     "lodestar",
		Short:   "Four-dimension equity profiling, signal fusion and backtesting",
		Version: version,
		Long: `Lodestar profiles equities along four dimensions (technical structure,
capital flow, relative strength, catalyst proximity), fuses them through
ordered quality gates into conviction-ranked trade plans, and replays the
strategy through a daily backtest against baseline comparisons.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a yaml config file (built-in defaults when omitted)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [symbol]",
		Short: "Profile one symbol and print its verdict",
		Long:  "Runs the four profiling dimensions over one symbol's full history, evaluates the quality gates, and prints conviction, class, and the trade plan when one is admitted",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().Bool("json", false, "Print the full report as JSON")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the universe and rank admitted signals",
		Long:  "Profiles every symbol in the data directory on the worker pool and prints the S and A tier lists ranked by conviction",
		RunE:  runScan,
	}
	scanCmd.Flags().Int("top", 20, "Rows to print per tier")
	scanCmd.Flags().Bool("json", false, "Print the scan result as JSON")
	addExportFlag(scanCmd.Flags())

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the core strategy and baselines over a window",
		Long:  "Simulates the core strategy and the selected baselines day by day over the same window, prints the comparison table, and writes per-strategy artifacts",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().String("from", "", "Start date (YYYY-MM-DD), defaults to the first bar on record")
	backtestCmd.Flags().String("to", "", "End date (YYYY-MM-DD), defaults to the last bar on record")
	backtestCmd.Flags().String("baselines", "all", "Comma-separated baseline strategies, or 'all' or 'none'")
	backtestCmd.Flags().Bool("save", true, "Persist results when the database is enabled")
	addExportFlag(backtestCmd.Flags())

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve the monitor HTTP API",
		Long:  "Starts the HTTP server with /health, /metrics, run-history endpoints, asynchronous backtest launches and the websocket progress stream",
		RunE:  runMonitor,
	}
	monitorCmd.Flags().String("host", "", "Listen host (overrides config)")
	monitorCmd.Flags().Int("port", 0, "Listen port (overrides config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// addExportFlag registers the artifact toggle shared by scan and backtest.
func addExportFlag(fs *pflag.FlagSet) {
	fs.Bool("export", true, "Write run artifacts to the export directory")
}
