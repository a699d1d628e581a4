package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, g.Write(&metric))
	return metric.GetGauge().GetValue()
}

func histogramCount(t *testing.T, vec *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	obs, err := vec.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	var metric dto.Metric
	require.NoError(t, obs.(prometheus.Metric).Write(&metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestPlanCountersByLabel(t *testing.T) {
	m := New()

	m.PlanGenerated("S")
	m.PlanGenerated("A")
	m.PlanGenerated("A")
	m.PlanRejected("capital")
	m.PlanRejected("conviction")

	assert.Equal(t, 1.0, counterValue(t, m.PlansGenerated.WithLabelValues("S")))
	assert.Equal(t, 2.0, counterValue(t, m.PlansGenerated.WithLabelValues("A")))
	assert.Equal(t, 1.0, counterValue(t, m.PlanRejections.WithLabelValues("capital")))
	assert.Equal(t, 1.0, counterValue(t, m.PlanRejections.WithLabelValues("conviction")))
	assert.Equal(t, 0.0, counterValue(t, m.PlanRejections.WithLabelValues("geometry")))
}

func TestCacheHitRatio(t *testing.T) {
	m := New()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	assert.Equal(t, 3.0, counterValue(t, m.CacheHits))
	assert.Equal(t, 1.0, counterValue(t, m.CacheMisses))
	assert.InDelta(t, 0.75, gaugeValue(t, m.CacheHitRatio), 1e-9)
}

func TestScanTimerObservesRegime(t *testing.T) {
	m := New()

	timer := m.StartScan("BULLISH")
	timer.Stop()

	assert.Equal(t, uint64(1), histogramCount(t, m.ScanDuration, "BULLISH"))
	assert.Equal(t, uint64(0), histogramCount(t, m.ScanDuration, "BEARISH"))
}

func TestRunTimerTracksActiveGauge(t *testing.T) {
	m := New()

	timer := m.StartRun("lodestar_core")
	assert.Equal(t, 1.0, gaugeValue(t, m.ActiveRuns))

	second := m.StartRun("ma_cross")
	assert.Equal(t, 2.0, gaugeValue(t, m.ActiveRuns))

	timer.Stop()
	second.Stop()
	assert.Equal(t, 0.0, gaugeValue(t, m.ActiveRuns))
	assert.Equal(t, uint64(1), histogramCount(t, m.RunDuration, "lodestar_core"))
	assert.Equal(t, uint64(1), histogramCount(t, m.RunDuration, "ma_cross"))
}

func TestTradeClosedByReason(t *testing.T) {
	m := New()

	m.TradeClosed("STOP_LOSS")
	m.TradeClosed("STOP_LOSS")
	m.TradeClosed("PROFIT_TARGET")

	assert.Equal(t, 2.0, counterValue(t, m.TradesClosed.WithLabelValues("STOP_LOSS")))
	assert.Equal(t, 1.0, counterValue(t, m.TradesClosed.WithLabelValues("PROFIT_TARGET")))
}

func TestObserveHTTPLabelsStatus(t *testing.T) {
	m := New()

	m.ObserveHTTP("GET", "/v1/runs", 200, 25*time.Millisecond)
	m.ObserveHTTP("GET", "/v1/runs", 200, 40*time.Millisecond)
	m.ObserveHTTP("POST", "/v1/backtest", 422, time.Millisecond)

	assert.Equal(t, uint64(2), histogramCount(t, m.HTTPDuration, "GET", "/v1/runs", "200"))
	assert.Equal(t, uint64(1), histogramCount(t, m.HTTPDuration, "POST", "/v1/backtest", "422"))
}

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	m := New()
	m.PlanGenerated("S")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "lodestar_plans_generated_total")
	assert.Contains(t, body, `class="S"`)
}

func TestIndependentRegistries(t *testing.T) {
	first := New()
	second := New()

	first.PlanGenerated("S")

	assert.Equal(t, 1.0, counterValue(t, first.PlansGenerated.WithLabelValues("S")))
	assert.Equal(t, 0.0, counterValue(t, second.PlansGenerated.WithLabelValues("S")))
}
