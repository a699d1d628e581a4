// Package catalyst supplies the scheduled-event feed consumed by the catalyst
// profiling dimension: a static yaml calendar for research runs and an HTTP
// feed with provider guards for live refreshes.
package catalyst

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v2"
)

// Event is one scheduled item on a symbol's calendar.
type Event struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Type   string    `json:"type" yaml:"type"`
	Date   time.Time `json:"date" yaml:"date"`
	Impact string    `json:"impact" yaml:"impact"`
}

// EventFeed answers "which events land on symbol strictly after from and no
// later than until". Implementations must be safe for concurrent readers.
type EventFeed interface {
	UpcomingEvents(symbol string, from, until time.Time) []Event
}

// Calendar is an in-memory EventFeed backed by a static event list.
type Calendar struct {
	events map[string][]Event
}

// NewCalendar indexes events by symbol, each list sorted by date.
func NewCalendar(events []Event) *Calendar {
	indexed := make(map[string][]Event)
	for _, ev := range events {
		indexed[ev.Symbol] = append(indexed[ev.Symbol], ev)
	}
	for sym := range indexed {
		list := indexed[sym]
		sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	}
	return &Calendar{events: indexed}
}

type calendarFile struct {
	Events []Event `yaml:"events"`
}

// LoadCalendar reads a yaml event calendar from disk.
func LoadCalendar(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar %s: %w", path, err)
	}

	var file calendarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", path, err)
	}
	for i, ev := range file.Events {
		if ev.Symbol == "" || ev.Type == "" {
			return nil, fmt.Errorf("calendar %s: event %d missing symbol or type", path, i)
		}
	}
	return NewCalendar(file.Events), nil
}

// UpcomingEvents implements EventFeed.
func (c *Calendar) UpcomingEvents(symbol string, from, until time.Time) []Event {
	if c == nil {
		return nil
	}
	var out []Event
	for _, ev := range c.events[symbol] {
		if ev.Date.After(from) && !ev.Date.After(until) {
			out = append(out, ev)
		}
	}
	return out
}

// Size returns the total number of events held.
func (c *Calendar) Size() int {
	total := 0
	for _, list := range c.events {
		total += len(list)
	}
	return total
}
