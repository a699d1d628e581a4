package log

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-quant/lodestar/internal/backtest"
)

func event(runID string, day, total int) backtest.Progress {
	return backtest.Progress{
		RunID:      runID,
		Date:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		DayIndex:   day,
		TotalDays:  total,
		Equity:     1_000_000,
		Cash:       900_000,
		OpenCount:  2,
		TradeCount: 5,
	}
}

func ttyProgress(buf *bytes.Buffer) *RunProgress {
	return &RunProgress{out: buf, tty: true}
}

func TestRunProgressRendersBar(t *testing.T) {
	var buf bytes.Buffer
	p := ttyProgress(&buf)

	p.Hook()(event("run-1-xxxxxxxx", 5, 10))

	out := buf.String()
	assert.Contains(t, out, "run-1-xx")
	assert.Contains(t, out, "day 5/10")
	assert.Contains(t, out, "equity 1000000")
	assert.Contains(t, out, "open 2")
	assert.Contains(t, out, strings.Repeat("█", 12))
	assert.Contains(t, out, "░")
}

func TestRunProgressNewRunBreaksLine(t *testing.T) {
	var buf bytes.Buffer
	p := ttyProgress(&buf)

	p.observe(event("run-1", 10, 10))
	require.NotContains(t, buf.String(), "\n")

	p.observe(event("run-2", 1, 10))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	p.Finish()
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestRunProgressQuietWhenPiped(t *testing.T) {
	var buf bytes.Buffer
	p := &RunProgress{out: &buf, tty: false}

	p.observe(event("run-1", 3, 10))
	p.Finish()

	// Piped output must stay free of carriage returns and escape codes.
	assert.Empty(t, buf.String())
}

func TestRunProgressFinishWithoutRuns(t *testing.T) {
	var buf bytes.Buffer
	p := ttyProgress(&buf)

	p.Finish()
	assert.Empty(t, buf.String())
}

func TestNewRunProgressUsesTerminalProbe(t *testing.T) {
	old := stderrIsTerminal
	stderrIsTerminal = func() bool { return false }
	defer func() { stderrIsTerminal = old }()

	p := NewRunProgress()
	assert.False(t, p.tty)
}

func TestBarBounds(t *testing.T) {
	assert.Equal(t, barWidth, utf8.RuneCountInString(bar(0, 10)))
	assert.NotContains(t, bar(0, 10), "█")
	assert.NotContains(t, bar(10, 10), "░")
	assert.Equal(t, barWidth, utf8.RuneCountInString(bar(3, 0)))
	assert.Equal(t, barWidth, utf8.RuneCountInString(bar(15, 10)))
	assert.NotContains(t, bar(15, 10), "░")
}

func TestStepLoggerTracksDurations(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStepLogger("scan", []string{"load", "profile", "export"})
	sl.out = &buf
	sl.tty = true

	sl.StartStep("load")
	sl.StartStep("profile")
	sl.StartStep("export")
	sl.Finish()

	for i, d := range sl.durations {
		assert.Greater(t, d, time.Duration(0), sl.steps[i])
	}
	assert.Equal(t, -1, sl.current)

	out := buf.String()
	assert.Contains(t, out, "scan: load (1/3)")
	assert.Contains(t, out, "scan: profile (2/3)")
	assert.Contains(t, out, "scan: done")
}

func TestStepLoggerIgnoresUnknownStep(t *testing.T) {
	sl := NewStepLogger("scan", []string{"load"})
	sl.tty = false

	sl.StartStep("bogus")
	assert.Equal(t, -1, sl.current)
	assert.Equal(t, time.Duration(0), sl.durations[0])
}

func TestStepLoggerFailNamesRunningStep(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStepLogger("backtest", []string{"load", "run"})
	sl.out = &buf
	sl.tty = true

	sl.StartStep("run")
	sl.Fail("universe empty")

	assert.Contains(t, buf.String(), "backtest: failed at run: universe empty")
}
