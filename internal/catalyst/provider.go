package catalyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// FeedConfig controls the HTTP event feed and its provider guards.
type FeedConfig struct {
	URL             string        `yaml:"url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	Burst           int           `yaml:"burst"`
	MaxRetries      uint64        `yaml:"max_retries"`
	BreakerInterval time.Duration `yaml:"breaker_interval"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
	FailureRate     float64       `yaml:"failure_rate"`
}

// DefaultFeedConfig returns conservative provider guard settings.
func DefaultFeedConfig(url string) FeedConfig {
	return FeedConfig{
		URL:             url,
		RequestTimeout:  10 * time.Second,
		RequestsPerSec:  2,
		Burst:           1,
		MaxRetries:      3,
		BreakerInterval: 60 * time.Second,
		BreakerTimeout:  30 * time.Second,
		FailureRate:     0.5,
	}
}

// HTTPFeed polls a remote event endpoint and serves a point-in-time snapshot.
// Reads never touch the network: UpcomingEvents answers from the last snapshot
// taken by Refresh, so a dead provider degrades the catalyst dimension to its
// neutral baseline instead of failing an analysis run.
type HTTPFeed struct {
	config  FeedConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	mu       sync.RWMutex
	snapshot *Calendar
	fetched  time.Time
}

// NewHTTPFeed wires the rate limiter and circuit breaker around the endpoint.
func NewHTTPFeed(config FeedConfig) *HTTPFeed {
	settings := gobreaker.Settings{
		Name:        "catalyst-feed",
		MaxRequests: 1,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= config.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Catalyst feed breaker state change")
		},
	}

	return &HTTPFeed{
		config:   config,
		client:   &http.Client{Timeout: config.RequestTimeout},
		limiter:  rate.NewLimiter(rate.Limit(config.RequestsPerSec), config.Burst),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		snapshot: NewCalendar(nil),
	}
}

// wireEvent is the provider's JSON shape. Dates arrive as YYYY-MM-DD strings.
type wireEvent struct {
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
	Date   string `json:"date"`
	Impact string `json:"impact"`
}

// Refresh fetches the full calendar and swaps the snapshot on success. The
// previous snapshot stays in place on any failure.
func (f *HTTPFeed) Refresh(ctx context.Context) error {
	operation := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		result, err := f.breaker.Execute(func() (interface{}, error) {
			return f.fetch(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			return err
		}
		events := result.([]Event)
		f.mu.Lock()
		f.snapshot = NewCalendar(events)
		f.fetched = time.Now()
		f.mu.Unlock()
		log.Info().Int("events", len(events)).Msg("Catalyst calendar refreshed")
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.config.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("refresh catalyst feed: %w", err)
	}
	return nil
}

func (f *HTTPFeed) fetch(ctx context.Context) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("catalyst feed: status %d", resp.StatusCode)
	}

	var wire []wireEvent
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("catalyst feed: decode: %w", err)
	}

	events := make([]Event, 0, len(wire))
	for _, w := range wire {
		date, err := time.Parse("2006-01-02", w.Date)
		if err != nil {
			log.Debug().Str("symbol", w.Symbol).Str("date", w.Date).Msg("Skipping event with bad date")
			continue
		}
		events = append(events, Event{Symbol: w.Symbol, Type: w.Type, Date: date, Impact: w.Impact})
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].Symbol < events[j].Symbol
	})
	return events, nil
}

// UpcomingEvents implements EventFeed against the current snapshot.
func (f *HTTPFeed) UpcomingEvents(symbol string, from, until time.Time) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot.UpcomingEvents(symbol, from, until)
}

// LastRefreshed reports when the snapshot was last replaced, zero if never.
func (f *HTTPFeed) LastRefreshed() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetched
}
