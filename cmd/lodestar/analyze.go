package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodestar-quant/lodestar/internal/strategy"
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	symbol := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	app, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.orch.AnalyzeStock(symbol)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(report)
	return nil
}

func printReport(report *strategy.StockReport) {
	ctx := report.Context
	fmt.Printf("%s  as of %s\n", report.Symbol, report.AsOf.Format("2006-01-02"))
	fmt.Printf("regime %s (strength %.0f)  volatility %s  risk appetite %s\n\n",
		ctx.Regime, ctx.Strength, ctx.Volatility, ctx.RiskAppetite)

	set := report.Profiles
	fmt.Printf("%-18s %6s %6s  %s\n", "DIMENSION", "SCORE", "CONF", "SIGNALS")
	printDimension("technical", set.Technical.Score, set.Technical.Confidence, set.Technical.Labels)
	printDimension("capital", set.Capital.Score, set.Capital.Confidence, set.Capital.Labels)
	printDimension("relative_strength", set.RelativeStrength.Score, set.RelativeStrength.Confidence, set.RelativeStrength.Labels)
	printDimension("catalyst", set.Catalyst.Score, set.Catalyst.Confidence, set.Catalyst.Labels)

	fmt.Printf("\n%-18s %6s %6s  %s\n", "GATE", "VALUE", "MIN", "RESULT")
	for _, check := range report.Gates.Checks {
		result := "pass"
		if !check.Passed {
			result = "FAIL"
		}
		fmt.Printf("%-18s %6.1f %6.1f  %s\n", check.Name, check.Value, check.Threshold, result)
	}

	fmt.Printf("\nconviction %.1f\n", report.Conviction)
	if report.Plan != nil {
		fmt.Printf("plan: %s\n", report.Plan)
		if report.Plan.Rationale != "" {
			fmt.Printf("rationale: %s\n", report.Plan.Rationale)
		}
		return
	}
	if reason := report.Gates.FailReason; reason != "" {
		fmt.Printf("no plan: %s\n", reason)
	} else {
		fmt.Println("no plan admitted")
	}
}

func printDimension(name string, score, confidence float64, labels []string) {
	fmt.Printf("%-18s %6.1f %6.2f  %s\n", name, score, confidence, strings.Join(labels, ", "))
}
