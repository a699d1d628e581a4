// Package log carries the CLI's terminal feedback: a per-day backtest
// progress bar and a pipeline step logger. Rendering degrades to plain
// structured logs when stderr is not a terminal, so piped output stays
// clean.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/lodestar-quant/lodestar/internal/backtest"
)

const barWidth = 24

// stderrIsTerminal is swapped out by tests.
var stderrIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// RunProgress renders one backtest run per line, day by day. A new run ID
// in the event stream finishes the previous line and starts a fresh bar,
// so a comparison across strategies reuses a single instance.
type RunProgress struct {
	mu       sync.Mutex
	out      io.Writer
	tty      bool
	runID    string
	runStart time.Time
	lastDay  int
	logEvery int
}

// NewRunProgress builds a progress renderer writing to stderr.
func NewRunProgress() *RunProgress {
	return &RunProgress{out: os.Stderr, tty: stderrIsTerminal()}
}

// Hook adapts the renderer to the engine's progress callback.
func (p *RunProgress) Hook() backtest.ProgressFn {
	return func(ev backtest.Progress) { p.observe(ev) }
}

func (p *RunProgress) observe(ev backtest.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.RunID != p.runID {
		if p.runID != "" && p.tty {
			fmt.Fprint(p.out, "\n")
		}
		p.runID = ev.RunID
		p.runStart = time.Now()
		p.lastDay = 0
		p.logEvery = ev.TotalDays / 10
		if p.logEvery < 1 {
			p.logEvery = 1
		}
	}
	p.lastDay = ev.DayIndex

	if p.tty {
		p.render(ev)
		return
	}
	if ev.DayIndex%p.logEvery == 0 || ev.DayIndex == ev.TotalDays {
		log.Info().
			Str("run_id", ev.RunID).
			Int("day", ev.DayIndex).
			Int("total_days", ev.TotalDays).
			Float64("equity", ev.Equity).
			Int("open", ev.OpenCount).
			Int("trades", ev.TradeCount).
			Msg("Backtest progress")
	}
}

func (p *RunProgress) render(ev backtest.Progress) {
	shortID := ev.RunID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	line := fmt.Sprintf("\r\033[K%s [%s] day %d/%d  equity %.0f  open %d  trades %d",
		shortID, bar(ev.DayIndex, ev.TotalDays), ev.DayIndex, ev.TotalDays,
		ev.Equity, ev.OpenCount, ev.TradeCount)

	if eta := p.eta(ev); eta > 0 {
		line += fmt.Sprintf("  eta %v", eta.Round(time.Second))
	}
	fmt.Fprint(p.out, line)
}

func (p *RunProgress) eta(ev backtest.Progress) time.Duration {
	if ev.DayIndex <= 0 || ev.DayIndex >= ev.TotalDays {
		return 0
	}
	elapsed := time.Since(p.runStart)
	perDay := elapsed / time.Duration(ev.DayIndex)
	return perDay * time.Duration(ev.TotalDays-ev.DayIndex)
}

// Finish closes the current bar line. Safe to call with no runs observed.
func (p *RunProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runID != "" && p.tty {
		fmt.Fprint(p.out, "\n")
	}
	p.runID = ""
}

func bar(current, total int) string {
	if total <= 0 {
		return strings.Repeat("░", barWidth)
	}
	filled := barWidth * current / total
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// StepLogger tracks a command's pipeline phases (load, scan, export) with
// per-step durations. Step events always go through zerolog; the inline
// status line appears only on a terminal.
type StepLogger struct {
	mu        sync.Mutex
	out       io.Writer
	tty       bool
	name      string
	steps     []string
	current   int
	started   time.Time
	stepStart time.Time
	durations []time.Duration
}

// NewStepLogger names the pipeline and its ordered steps.
func NewStepLogger(name string, steps []string) *StepLogger {
	return &StepLogger{
		out:       os.Stderr,
		tty:       stderrIsTerminal(),
		name:      name,
		steps:     steps,
		current:   -1,
		started:   time.Now(),
		durations: make([]time.Duration, len(steps)),
	}
}

// StartStep closes the running step, if any, and begins the named one.
// Unknown names are logged and ignored.
func (sl *StepLogger) StartStep(step string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	index := -1
	for i, s := range sl.steps {
		if s == step {
			index = i
			break
		}
	}
	if index == -1 {
		log.Warn().Str("pipeline", sl.name).Str("step", step).Msg("Unknown pipeline step")
		return
	}

	sl.completeCurrent()
	sl.current = index
	sl.stepStart = time.Now()

	if sl.tty {
		fmt.Fprintf(sl.out, "\r\033[K%s: %s (%d/%d)", sl.name, step, index+1, len(sl.steps))
	}
	log.Info().
		Str("pipeline", sl.name).
		Str("step", step).
		Int("step_number", index+1).
		Int("total_steps", len(sl.steps)).
		Msg("Pipeline step started")
}

func (sl *StepLogger) completeCurrent() {
	if sl.current < 0 {
		return
	}
	elapsed := time.Since(sl.stepStart)
	sl.durations[sl.current] = elapsed
	log.Info().
		Str("pipeline", sl.name).
		Str("step", sl.steps[sl.current]).
		Dur("duration", elapsed).
		Msg("Pipeline step completed")
	sl.current = -1
}

// Finish completes the running step and logs the per-step timing summary.
func (sl *StepLogger) Finish() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.completeCurrent()
	total := time.Since(sl.started)
	if sl.tty {
		fmt.Fprintf(sl.out, "\r\033[K%s: done (%v)\n", sl.name, total.Round(time.Millisecond))
	}

	event := log.Info().Str("pipeline", sl.name).Dur("total_duration", total)
	for i, step := range sl.steps {
		event = event.Dur(step, sl.durations[i])
	}
	event.Msg("Pipeline finished")
}

// Fail abandons the pipeline, naming the step that was running.
func (sl *StepLogger) Fail(reason string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	step := "none"
	if sl.current >= 0 && sl.current < len(sl.steps) {
		step = sl.steps[sl.current]
	}
	if sl.tty {
		fmt.Fprintf(sl.out, "\r\033[K%s: failed at %s: %s\n", sl.name, step, reason)
	}
	log.Error().
		Str("pipeline", sl.name).
		Str("failed_step", step).
		Str("reason", reason).
		Msg("Pipeline failed")
}
