package market

import (
	"fmt"
	"sort"
	"time"
)

// Bar is a single daily OHLCV record.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered (oldest to newest) OHLCV history for one symbol.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// NewSeries wraps bars into a Series without copying.
func NewSeries(symbol string, bars []Bar) *Series {
	return &Series{Symbol: symbol, Bars: bars}
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Validate checks ordering: dates must be strictly ascending, duplicates are invalid.
func (s *Series) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		prev, cur := s.Bars[i-1].Date, s.Bars[i].Date
		if cur.Equal(prev) {
			return fmt.Errorf("series %s: duplicate date %s", s.Symbol, cur.Format("2006-01-02"))
		}
		if cur.Before(prev) {
			return fmt.Errorf("series %s: dates out of order at %s", s.Symbol, cur.Format("2006-01-02"))
		}
	}
	return nil
}

// Tail returns a view of the last n bars (the whole series when n exceeds it).
func (s *Series) Tail(n int) *Series {
	if s == nil || n >= len(s.Bars) {
		return s
	}
	if n < 0 {
		n = 0
	}
	return &Series{Symbol: s.Symbol, Bars: s.Bars[len(s.Bars)-n:]}
}

// UpTo returns a view of all bars dated at or before date.
func (s *Series) UpTo(date time.Time) *Series {
	if s == nil {
		return nil
	}
	idx := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Date.After(date)
	})
	return &Series{Symbol: s.Symbol, Bars: s.Bars[:idx]}
}

// At returns the bar dated exactly at date.
func (s *Series) At(date time.Time) (Bar, bool) {
	if s == nil {
		return Bar{}, false
	}
	idx := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Date.Before(date)
	})
	if idx < len(s.Bars) && s.Bars[idx].Date.Equal(date) {
		return s.Bars[idx], true
	}
	return Bar{}, false
}

// LastBar returns the newest bar.
func (s *Series) LastBar() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// LastClose returns the newest close, 0 for an empty series.
func (s *Series) LastClose() float64 {
	if s.Len() == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// LastDate returns the newest bar date, zero for an empty series.
func (s *Series) LastDate() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Date
}

func (s *Series) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

func (s *Series) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

func (s *Series) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

func (s *Series) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return b.Volume })
}

func (s *Series) column(pick func(Bar) float64) []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = pick(b)
	}
	return out
}

// Universe maps symbol to its full history.
type Universe map[string]*Series

// Symbols returns the universe keys sorted ascending for deterministic iteration.
func (u Universe) Symbols() []string {
	symbols := make([]string, 0, len(u))
	for sym := range u {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// TradingDays collects the distinct bar dates across the universe within
// [start, end], sorted ascending. Days where no symbol has a bar do not count.
func (u Universe) TradingDays(start, end time.Time) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, series := range u {
		if series == nil {
			continue
		}
		for _, bar := range series.Bars {
			if bar.Date.Before(start) || bar.Date.After(end) {
				continue
			}
			seen[bar.Date] = struct{}{}
		}
	}
	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
