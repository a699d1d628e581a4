package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lodestar-quant/lodestar/internal/export"
	applog "github.com/lodestar-quant/lodestar/internal/log"
)

func runBacktest(cmd *cobra.Command, args []string) error {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	baselineStr, _ := cmd.Flags().GetString("baselines")
	save, _ := cmd.Flags().GetBool("save")
	doExport, _ := cmd.Flags().GetBool("export")

	// Long replays stop cleanly on Ctrl-C; the engine returns the partial
	// comparison with a context error.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	start, end, err := resolveWindow(app, fromStr, toStr)
	if err != nil {
		return err
	}

	log.Info().
		Str("from", start.Format("2006-01-02")).
		Str("to", end.Format("2006-01-02")).
		Str("baselines", baselineStr).
		Msg("Backtest starting")

	progress := applog.NewRunProgress()
	comparison, runErr := app.orch.RunBacktest(ctx, start, end, parseBaselines(baselineStr), progress.Hook())
	progress.Finish()
	if runErr != nil {
		return runErr
	}

	fmt.Print(comparison.Summary())

	var exporter *export.Exporter
	if doExport {
		exporter = export.New(app.config.Export.Dir)
	}
	for _, name := range comparison.Order {
		result, ok := comparison.Results[name]
		if !ok {
			continue
		}
		if exporter != nil {
			if _, err := exporter.WriteBacktest(result); err != nil {
				log.Warn().Err(err).Str("strategy", name).Msg("Artifact export failed")
			}
		}
		if save && app.store != nil {
			if err := app.store.Repository().SaveResult(ctx, result); err != nil {
				log.Warn().Err(err).Str("strategy", name).Msg("Result persistence failed")
			}
		}
	}

	if len(comparison.Failures) > 0 {
		return fmt.Errorf("%d of %d strategies failed", len(comparison.Failures), len(comparison.Order))
	}
	return nil
}

// resolveWindow parses the date flags, falling back to the universe's full
// bar span when a bound is omitted.
func resolveWindow(app *app, fromStr, toStr string) (time.Time, time.Time, error) {
	start, end := app.span()

	var err error
	if fromStr != "" {
		start, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q (use YYYY-MM-DD)", fromStr)
		}
	}
	if toStr != "" {
		end, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q (use YYYY-MM-DD)", toStr)
		}
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("from date %s is after to date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}

// parseBaselines maps the flag value onto RunBacktest's convention: nil runs
// every baseline, an empty non-nil slice runs the core alone.
func parseBaselines(value string) []string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all":
		return nil
	case "none":
		return []string{}
	}
	parts := strings.Split(value, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}
