// Package metrics exposes run and publish counters for the serve mode.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pricewatch/internal/eventbus"
)

type Metrics struct {
	reg *prometheus.Registry

	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	Changes       *prometheus.GaugeVec
	LastSuccess   prometheus.Gauge
	Attempts      *prometheus.CounterVec
	ThreadResults *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_runs_total",
			Help: "Runs by mode and result",
		}, []string{"mode", "result"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_run_duration_seconds",
			Help:    "Wall time of a full run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		Changes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricewatch_changes",
			Help: "Changes detected by the last run",
		}, []string{"group"}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_publish_attempts_total",
			Help: "Publish attempts by thread and outcome",
		}, []string{"thread", "outcome"}),
		ThreadResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_publish_threads_total",
			Help: "Finished threads by name and state",
		}, []string{"thread", "state"}),
	}
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe updates collectors from one bus event.
func (m *Metrics) Observe(e eventbus.Event) {
	switch d := e.Data.(type) {
	case eventbus.RunEvent:
		if e.Type != eventbus.TypeRunFinished {
			return
		}
		result := "ok"
		if d.Error != "" {
			result = "error"
		}
		m.Runs.WithLabelValues(d.Mode, result).Inc()
		if d.Duration > 0 {
			m.RunDuration.Observe(d.Duration.Seconds())
		}
		if d.Error != "" {
			return
		}
		m.LastSuccess.Set(float64(e.Time.Unix()))
		// publish-only runs carry no diff
		if d.Mode == "run" {
			m.Changes.WithLabelValues("risers").Set(float64(d.Risers))
			m.Changes.WithLabelValues("fallers").Set(float64(d.Fallers))
		}
	case eventbus.PublishEvent:
		switch e.Type {
		case eventbus.TypeChunkAttempt:
			m.Attempts.WithLabelValues(d.Thread, d.Outcome).Inc()
		case eventbus.TypeThreadDone:
			m.ThreadResults.WithLabelValues(d.Thread, d.State).Inc()
		}
	}
}

// Run feeds bus events into the collectors until ctx is done.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) <-chan struct{} {
	return eventbus.Consume(ctx, bus, 256, m.Observe)
}
