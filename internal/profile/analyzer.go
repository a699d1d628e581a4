package profile

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/catalyst"
	"github.com/lodestar-quant/lodestar/internal/market"
)

const catalystConfidence = 0.6

// Analyzer scores stocks along the four dimensions. It is stateless apart
// from its configuration and the injected event feed, so one instance serves
// concurrent callers.
type Analyzer struct {
	config Config
	feed   catalyst.EventFeed
}

// NewAnalyzer builds an analyzer. The feed may be nil; the catalyst dimension
// then always reads neutral.
func NewAnalyzer(config Config, feed catalyst.EventFeed) *Analyzer {
	if config.MinHistoryBars <= 0 {
		config = DefaultConfig()
	}
	return &Analyzer{config: config, feed: feed}
}

// Config returns the analyzer's parameters.
func (a *Analyzer) Config() Config { return a.config }

// Analyze scores one stock as of its last bar date. benchmark and sector may
// be nil; the affected dimensions degrade to neutral rather than erroring.
func (a *Analyzer) Analyze(stock, benchmark, sector *market.Series) *ProfileSet {
	symbol := ""
	if stock != nil {
		symbol = stock.Symbol
	}
	asOf := stock.LastDate()

	set := &ProfileSet{
		Symbol:           symbol,
		AsOf:             asOf,
		Technical:        analyzeTechnical(stock, a.config),
		Capital:          analyzeCapital(stock, a.config),
		Catalyst:         a.analyzeCatalyst(symbol, asOf),
		RelativeStrength: analyzeRelativeStrength(stock, benchmark, sector, a.config),
	}

	log.Debug().
		Str("symbol", symbol).
		Time("as_of", asOf).
		Float64("technical", set.Technical.Score).
		Float64("capital", set.Capital.Score).
		Float64("catalyst", set.Catalyst.Score).
		Float64("relative_strength", set.RelativeStrength.Score).
		Msg("Profiled stock")
	return set
}

func (a *Analyzer) analyzeCatalyst(symbol string, asOf time.Time) *CatalystProfile {
	var events []catalyst.Event
	if a.feed != nil && !asOf.IsZero() {
		until := asOf.AddDate(0, 0, a.config.CatalystHorizonDays)
		events = a.feed.UpcomingEvents(symbol, asOf, until)
	}

	if len(events) == 0 {
		return &CatalystProfile{
			Profile: Profile{
				Dimension:  DimensionCatalyst,
				Score:      50,
				Confidence: catalystConfidence,
				Labels:     []string{"no near-term catalyst"},
				Details:    map[string]float64{"event_count": 0},
			},
			EventImpact: ImpactNeutral,
		}
	}

	return &CatalystProfile{
		Profile: Profile{
			Dimension:  DimensionCatalyst,
			Score:      70,
			Confidence: catalystConfidence,
			Labels:     []string{fmt.Sprintf("approaching event: %s", events[0].Type)},
			Details:    map[string]float64{"event_count": float64(len(events))},
		},
		UpcomingEvents: events,
		EventImpact:    ImpactPositive,
	}
}
