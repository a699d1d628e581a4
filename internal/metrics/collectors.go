// Package metrics exposes Prometheus instrumentation for the profiling,
// fusion, and backtest pipeline. One Metrics value owns its registry, so
// tests and embedded uses never collide on global collector names.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Metrics bundles every collector behind one registry. Construct once and
// share; all collectors are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	// Scan pipeline
	ScanDuration   *prometheus.HistogramVec
	PlansGenerated *prometheus.CounterVec
	PlanRejections *prometheus.CounterVec

	// Profile cache
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheHitRatio prometheus.Gauge

	// Backtest
	TradesClosed *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	ActiveRuns   prometheus.Gauge

	// Monitor server
	HTTPDuration *prometheus.HistogramVec
}

// New creates the full collector set on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lodestar_scan_duration_seconds",
				Help:    "Duration of universe scans in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"regime"},
		),

		PlansGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestar_plans_generated_total",
				Help: "Total trade plans generated by signal class",
			},
			[]string{"class"},
		),

		PlanRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestar_plan_rejections_total",
				Help: "Total plan rejections by pipeline stage",
			},
			[]string{"stage"},
		),

		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lodestar_profile_cache_hits_total",
				Help: "Total profile cache hits",
			},
		),

		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lodestar_profile_cache_misses_total",
				Help: "Total profile cache misses",
			},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lodestar_profile_cache_hit_ratio",
				Help: "Profile cache hit ratio (0.0 to 1.0)",
			},
		),

		TradesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestar_trades_closed_total",
				Help: "Total closed trades by exit reason",
			},
			[]string{"reason"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lodestar_backtest_duration_seconds",
				Help:    "Duration of backtest runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"strategy"},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lodestar_active_backtests",
				Help: "Number of backtest runs currently executing",
			},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lodestar_http_request_duration_seconds",
				Help:    "Monitor server request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	m.registry.MustRegister(
		m.ScanDuration,
		m.PlansGenerated,
		m.PlanRejections,
		m.CacheHits,
		m.CacheMisses,
		m.CacheHitRatio,
		m.TradesClosed,
		m.RunDuration,
		m.ActiveRuns,
		m.HTTPDuration,
	)

	return m
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves this registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PlanGenerated records one admitted plan. Satisfies the fusion engine's
// observer contract.
func (m *Metrics) PlanGenerated(class string) {
	m.PlansGenerated.WithLabelValues(class).Inc()
}

// PlanRejected records one rejection at the named pipeline stage.
func (m *Metrics) PlanRejected(stage string) {
	m.PlanRejections.WithLabelValues(stage).Inc()
}

// RecordCacheHit counts a profile cache hit and refreshes the hit ratio.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss counts a profile cache miss and refreshes the hit ratio.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
	m.updateCacheHitRatio()
}

func (m *Metrics) updateCacheHitRatio() {
	var hits, misses dto.Metric
	if err := m.CacheHits.Write(&hits); err != nil {
		return
	}
	if err := m.CacheMisses.Write(&misses); err != nil {
		return
	}
	total := hits.GetCounter().GetValue() + misses.GetCounter().GetValue()
	if total > 0 {
		m.CacheHitRatio.Set(hits.GetCounter().GetValue() / total)
	}
}

// TradeClosed records one closed round trip by exit reason.
func (m *Metrics) TradeClosed(reason string) {
	m.TradesClosed.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one served monitor request.
func (m *Metrics) ObserveHTTP(method, path string, status int, duration time.Duration) {
	m.HTTPDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ScanTimer times one universe scan.
type ScanTimer struct {
	metrics *Metrics
	regime  string
	start   time.Time
}

// StartScan begins timing a universe scan under the active regime label.
func (m *Metrics) StartScan(regime string) *ScanTimer {
	return &ScanTimer{metrics: m, regime: regime, start: time.Now()}
}

// Stop records the scan duration.
func (t *ScanTimer) Stop() {
	duration := time.Since(t.start)
	t.metrics.ScanDuration.WithLabelValues(t.regime).Observe(duration.Seconds())

	log.Debug().
		Str("regime", t.regime).
		Dur("duration", duration).
		Msg("scan timed")
}

// RunTimer times one backtest run and tracks the active-run gauge.
type RunTimer struct {
	metrics  *Metrics
	strategy string
	start    time.Time
}

// StartRun begins timing a backtest run and raises the active gauge.
func (m *Metrics) StartRun(strategy string) *RunTimer {
	m.ActiveRuns.Inc()
	return &RunTimer{metrics: m, strategy: strategy, start: time.Now()}
}

// Stop lowers the active gauge and records the run duration.
func (t *RunTimer) Stop() {
	t.metrics.ActiveRuns.Dec()
	t.metrics.RunDuration.WithLabelValues(t.strategy).Observe(time.Since(t.start).Seconds())
}
