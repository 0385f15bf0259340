package metrics

import (
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements forecast.Metrics using Prometheus.
type Recorder struct {
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	forecastsTotal  *prometheus.CounterVec
	degradedSignals prometheus.Histogram
	lastExtra       prometheus.Gauge
	lastConfidence  prometheus.Gauge
}

// New creates a Prometheus recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		providerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demand_fusion_provider_calls_total",
				Help: "Total number of provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "demand_fusion_provider_duration_seconds",
				Help:    "Duration of provider calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demand_fusion_cache_lookups_total",
				Help: "Forecast cache lookups by result",
			},
			[]string{"result"},
		),
		forecastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demand_fusion_forecasts_total",
				Help: "Freshly fused forecasts by summary label",
			},
			[]string{"label"},
		),
		degradedSignals: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "demand_fusion_degraded_signals",
				Help:    "Number of fallback signals per fused forecast",
				Buckets: prometheus.LinearBuckets(0, 1, 6),
			},
		),
		lastExtra: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "demand_fusion_last_extra_per_hour",
				Help: "Extra customers per hour of the last fused forecast",
			},
		),
		lastConfidence: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "demand_fusion_last_confidence",
				Help: "Overall confidence of the last fused forecast",
			},
		),
	}
}

// ObserveProvider records one provider call.
func (r *Recorder) ObserveProvider(provider, outcome string, d time.Duration) {
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveCache records a cache lookup result (hit, miss, error).
func (r *Recorder) ObserveCache(result string) {
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveForecast records a freshly fused forecast.
func (r *Recorder) ObserveForecast(f forecast.FusedForecast) {
	r.forecastsTotal.WithLabelValues(string(f.SummaryLabel)).Inc()
	r.degradedSignals.Observe(float64(f.Degraded()))
	r.lastExtra.Set(f.ExtraPerHour)
	r.lastConfidence.Set(f.OverallConfidence)
}
