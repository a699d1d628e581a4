package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102"}

// LoadCSV reads one symbol's history from a date,open,high,low,close,volume file.
// A header row is detected and skipped.
func LoadCSV(path, symbol string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	bars := make([]Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%s row %d: expected 6 columns, got %d", path, i+1, len(row))
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "date") {
			continue
		}
		bar, err := parseBar(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		bars = append(bars, bar)
	}

	series := NewSeries(symbol, bars)
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// LoadDir loads every *.csv file in dir as one symbol, named after the file.
func LoadDir(dir string) (Universe, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	universe := make(Universe)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		symbol := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		series, err := LoadCSV(filepath.Join(dir, entry.Name()), symbol)
		if err != nil {
			return nil, err
		}
		universe[symbol] = series
		log.Debug().Str("symbol", symbol).Int("bars", series.Len()).Msg("Loaded symbol history")
	}

	if len(universe) == 0 {
		return nil, fmt.Errorf("no csv files found in %s", dir)
	}
	log.Info().Int("symbols", len(universe)).Str("dir", dir).Msg("Universe loaded")
	return universe, nil
}

func parseBar(row []string) (Bar, error) {
	date, err := parseDate(strings.TrimSpace(row[0]))
	if err != nil {
		return Bar{}, err
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		fields[i] = v
	}

	return Bar{
		Date:   date,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}
