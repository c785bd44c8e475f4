package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SweepCollector exposes the daily delinquency sweep on a Prometheus
// registry, scraped from /metrics.
type SweepCollector struct {
	runs     *prometheus.CounterVec
	loans    *prometheus.CounterVec
	buckets  *prometheus.GaugeVec
	lastRun  prometheus.Gauge
	duration prometheus.Histogram
	registry *prometheus.Registry
}

// SweepRun is what one sweep reports to the collector
type SweepRun struct {
	Outcome      string
	Duration     time.Duration
	Processed    int
	Transitioned int
	Failed       int
	Buckets      map[string]int
	FinishedAt   time.Time
}

// NewSweepCollector registers the sweep metrics on a fresh registry
func NewSweepCollector() *SweepCollector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &SweepCollector{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_sweep_runs_total",
			Help: "Delinquency sweep runs by outcome",
		}, []string{"outcome"}),
		loans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_sweep_loans_total",
			Help: "Loans visited by the delinquency sweep by result",
		}, []string{"result"}),
		buckets: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lms_sweep_bucket_loans",
			Help: "Loans per bucket after the last sweep",
		}, []string{"bucket"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "lms_sweep_last_run_timestamp_seconds",
			Help: "Unix time the last sweep finished",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lms_sweep_duration_seconds",
			Help:    "Delinquency sweep duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}),
		registry: reg,
	}
}

// Observe records a finished sweep
func (c *SweepCollector) Observe(run SweepRun) {
	c.runs.WithLabelValues(run.Outcome).Inc()
	c.loans.WithLabelValues("processed").Add(float64(run.Processed))
	c.loans.WithLabelValues("transitioned").Add(float64(run.Transitioned))
	c.loans.WithLabelValues("failed").Add(float64(run.Failed))
	c.buckets.Reset()
	for bucket, n := range run.Buckets {
		c.buckets.WithLabelValues(bucket).Set(float64(n))
	}
	c.duration.Observe(run.Duration.Seconds())
	c.lastRun.Set(float64(run.FinishedAt.Unix()))
}

// RegisterHandlerStats exposes the delivery counters of an event subscriber
// as lms_event_deliveries_total{handler,result}. The functions are read on
// every scrape.
func (c *SweepCollector) RegisterHandlerStats(handler string, processed, duplicate, failed func() int64) error {
	for _, r := range []struct {
		result string
		load   func() int64
	}{
		{"processed", processed},
		{"duplicate", duplicate},
		{"failed", failed},
	} {
		load := r.load
		err := c.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "lms_event_deliveries_total",
			Help:        "Domain event deliveries by subscriber and result",
			ConstLabels: prometheus.Labels{"handler": handler, "result": r.result},
		}, func() float64 { return float64(load()) }))
		if err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus text format
func (c *SweepCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry
func (c *SweepCollector) Gatherer() prometheus.Gatherer {
	return c.registry
}
