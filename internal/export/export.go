// Package export writes scan and backtest artifacts (CSV and JSON) under a
// base directory so runs can be inspected outside the process.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/backtest"
	"github.com/lodestar-quant/lodestar/internal/strategy"
)

// Exporter writes artifacts into one directory, creating it on first use.
type Exporter struct {
	dir string
}

// New returns an Exporter rooted at dir. The directory is created lazily by
// the first write.
func New(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Dir reports the directory artifacts are written to.
func (e *Exporter) Dir() string { return e.dir }

func (e *Exporter) ensureDir() error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", e.dir, err)
	}
	return nil
}

// WriteBacktest writes the full artifact set for one result: trades CSV,
// equity-curve CSV and the result JSON. It returns the written paths.
func (e *Exporter) WriteBacktest(result *backtest.Result) ([]string, error) {
	paths := make([]string, 0, 3)
	for _, write := range []func(*backtest.Result) (string, error){
		e.WriteTradesCSV, e.WriteEquityCSV, e.WriteResultJSON,
	} {
		path, err := write(result)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	log.Info().
		Str("strategy", result.Strategy).
		Str("dir", e.dir).
		Int("trades", len(result.Trades)).
		Msg("Backtest artifacts written")
	return paths, nil
}

// WriteTradesCSV writes one row per closed trade to <strategy>_trades.csv.
// Conviction and class come from the admitted plan and stay empty for
// baseline trades carrying none.
func (e *Exporter) WriteTradesCSV(result *backtest.Result) (string, error) {
	rows := [][]string{{
		"symbol", "entry_date", "entry_price", "quantity",
		"exit_date", "exit_price", "exit_reason",
		"pnl", "pnl_pct", "holding_days", "conviction", "class",
	}}
	for _, trade := range result.Trades {
		conviction, class := "", ""
		if trade.Plan != nil {
			conviction = fmt.Sprintf("%.1f", trade.Plan.ConvictionScore)
			class = string(trade.Plan.Class)
		}
		rows = append(rows, []string{
			trade.Symbol,
			trade.EntryDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", trade.EntryPrice),
			strconv.Itoa(trade.Quantity),
			trade.ExitDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", trade.ExitPrice),
			string(trade.ExitReason),
			fmt.Sprintf("%.2f", trade.PnL),
			fmt.Sprintf("%.2f", trade.PnLPct),
			strconv.Itoa(trade.HoldingDays),
			conviction,
			class,
		})
	}
	return e.writeCSV(result.Strategy+"_trades.csv", rows)
}

// WriteEquityCSV writes the mark-to-market curve to <strategy>_equity.csv.
func (e *Exporter) WriteEquityCSV(result *backtest.Result) (string, error) {
	rows := [][]string{{"date", "equity", "cash", "positions"}}
	for _, point := range result.EquityCurve {
		rows = append(rows, []string{
			point.Date.Format("2006-01-02"),
			fmt.Sprintf("%.2f", point.Equity),
			fmt.Sprintf("%.2f", point.Cash),
			strconv.Itoa(point.Positions),
		})
	}
	return e.writeCSV(result.Strategy+"_equity.csv", rows)
}

// WriteResultJSON writes the complete result, stats and trades included, to
// <strategy>_result.json.
func (e *Exporter) WriteResultJSON(result *backtest.Result) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, result.Strategy+"_result.json")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteSignalsCSV writes a scan's ranked lists, S tier before A tier, to
// signals_<date>.csv.
func (e *Exporter) WriteSignalsCSV(scan *strategy.ScanResult) (string, error) {
	rows := [][]string{{
		"tier", "rank", "symbol", "conviction",
		"entry_low", "entry_high", "stop", "target",
		"risk_reward", "size_pct", "rationale",
	}}
	appendTier := func(tier string, list []strategy.Ranked) {
		for i, entry := range list {
			plan := entry.Plan
			rows = append(rows, []string{
				tier,
				strconv.Itoa(i + 1),
				entry.Symbol,
				fmt.Sprintf("%.1f", entry.Conviction),
				fmt.Sprintf("%.2f", plan.EntryZone.Low),
				fmt.Sprintf("%.2f", plan.EntryZone.High),
				fmt.Sprintf("%.2f", plan.StopLossPrice),
				fmt.Sprintf("%.2f", plan.TargetPrice),
				fmt.Sprintf("%.2f", plan.RiskReward),
				fmt.Sprintf("%.3f", plan.PositionSizePct),
				plan.Rationale,
			})
		}
	}
	appendTier("S", scan.SList)
	appendTier("A", scan.AList)

	name := fmt.Sprintf("signals_%s.csv", scan.AsOf.Format("2006-01-02"))
	return e.writeCSV(name, rows)
}

func (e *Exporter) writeCSV(name string, rows [][]string) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	return path, nil
}
