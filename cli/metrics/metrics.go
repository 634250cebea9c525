// Package metrics exposes Prometheus counters and histograms for runs,
// test cases and wizard interactions.
package metrics

import (
	"bytes"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/chattigo/autobot/model"
)

// Collector captures metrics for test runs.
type Collector struct {
	registry        *prometheus.Registry
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	casesTotal      *prometheus.CounterVec
	runsInFlight    prometheus.Gauge
	publishFailures prometheus.Counter
	wizardEvents    *prometheus.CounterVec
}

// NewCollector initializes a new metrics registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	collector := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "autobot_runs_total", Help: "Total number of test runs"},
			[]string{"environment", "profile", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autobot_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 900, 1200, 1800},
			},
			[]string{"environment", "profile"},
		),
		casesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "autobot_test_cases_total", Help: "Total number of reported test cases"},
			[]string{"environment", "profile", "outcome"},
		),
		runsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "autobot_runs_in_flight", Help: "Runs currently executing"},
		),
		publishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "autobot_publish_failures_total", Help: "Reports that could not be uploaded"},
		),
		wizardEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "autobot_wizard_events_total", Help: "Wizard interactions by event"},
			[]string{"event"},
		),
	}

	registry.MustRegister(
		collector.runsTotal,
		collector.runDuration,
		collector.casesTotal,
		collector.runsInFlight,
		collector.publishFailures,
		collector.wizardEvents,
	)
	return collector
}

// RunStarted marks a run as in flight. The returned func marks it done.
func (c *Collector) RunStarted() func() {
	c.runsInFlight.Inc()
	return c.runsInFlight.Dec
}

// ObserveRun records a finished run and its case counters.
func (c *Collector) ObserveRun(req model.RunRequest, status model.ExitStatus, summary model.RunSummary, duration time.Duration) {
	env, profile := string(req.Environment), string(req.Profile)
	c.runsTotal.WithLabelValues(env, profile, string(status)).Inc()
	c.runDuration.WithLabelValues(env, profile).Observe(duration.Seconds())
	c.casesTotal.WithLabelValues(env, profile, string(model.OutcomePassed)).Add(float64(summary.Passed))
	c.casesTotal.WithLabelValues(env, profile, string(model.OutcomeFailed)).Add(float64(summary.Failed))
}

// ObservePublishFailure counts a failed report upload.
func (c *Collector) ObservePublishFailure() {
	c.publishFailures.Inc()
}

// ObserveWizard counts a wizard event such as "start" or "expired".
func (c *Collector) ObserveWizard(event string) {
	c.wizardEvents.WithLabelValues(event).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Write writes all metrics to a Prometheus text file.
func (c *Collector) Write(path string) error {
	metricFamilies, err := c.registry.Gather()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range metricFamilies {
		if err := enc.Encode(family); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
