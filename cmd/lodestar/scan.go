package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lodestar-quant/lodestar/internal/export"
	applog "github.com/lodestar-quant/lodestar/internal/log"
	"github.com/lodestar-quant/lodestar/internal/strategy"
)

func runScan(cmd *cobra.Command, args []string) error {
	top, _ := cmd.Flags().GetInt("top")
	asJSON, _ := cmd.Flags().GetBool("json")
	doExport, _ := cmd.Flags().GetBool("export")

	ctx := context.Background()
	steps := applog.NewStepLogger("scan", []string{"load", "scan", "export"})

	steps.StartStep("load")
	app, err := newApp(ctx, false)
	if err != nil {
		steps.Fail(err.Error())
		return err
	}
	defer app.Close()

	steps.StartStep("scan")
	result, err := app.orch.BatchAnalyze(ctx)
	if err != nil {
		steps.Fail(err.Error())
		return err
	}

	if doExport {
		steps.StartStep("export")
		path, err := export.New(app.config.Export.Dir).WriteSignalsCSV(result)
		if err != nil {
			steps.Fail(err.Error())
			return err
		}
		log.Info().Str("path", path).Msg("Signal list written")
	}
	steps.Finish()

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printScan(result, top)
	return nil
}

func printScan(result *strategy.ScanResult, top int) {
	fmt.Printf("scanned %d symbols in %v  as of %s  regime %s\n",
		result.Scanned, result.Duration, result.AsOf.Format("2006-01-02"), result.Context.Regime)

	printTier("S TIER", result.SList, top)
	printTier("A TIER", result.AList, top)
}

func printTier(title string, list []strategy.Ranked, top int) {
	fmt.Printf("\n%s (%d)\n", title, len(list))
	if len(list) == 0 {
		return
	}
	fmt.Printf("%4s  %-10s %10s  %-17s %8s %8s %5s %6s\n",
		"RANK", "SYMBOL", "CONVICTION", "ENTRY", "STOP", "TARGET", "RR", "SIZE%")
	for i, ranked := range list {
		if top > 0 && i >= top {
			fmt.Printf("... %d more\n", len(list)-top)
			break
		}
		plan := ranked.Plan
		entry := fmt.Sprintf("%.2f-%.2f", plan.EntryZone.Low, plan.EntryZone.High)
		fmt.Printf("%4d  %-10s %10.1f  %-17s %8.2f %8.2f %5.2f %6.1f\n",
			i+1, ranked.Symbol, ranked.Conviction, entry,
			plan.StopLossPrice, plan.TargetPrice, plan.RiskReward, plan.PositionSizePct*100)
	}
}
