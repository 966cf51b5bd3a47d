// Package metrics exports pipeline counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
)

const namespace = "profilebus"

// Metrics holds the pipeline collectors. It satisfies engine.Recorder.
type Metrics struct {
	outcomes   *prometheus.CounterVec
	storeOps   *prometheus.HistogramVec
	feedLines  *prometheus.CounterVec
	lastHeight prometheus.Gauge
}

// New registers the pipeline collectors on reg.
// Pass prometheus.NewRegistry() in tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "outcomes_total",
				Help:      "Processed events by kind, status and rejection reason.",
			},
			[]string{"kind", "status", "reason"},
		),
		storeOps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "op_duration_seconds",
				Help:      "State store call duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		),
		feedLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "lines_total",
				Help:      "Feed lines by disposition.",
			},
			[]string{"disposition"},
		),
		lastHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "last_block_height",
				Help:      "Highest block height seen on a boarded action.",
			},
		),
	}
	reg.MustRegister(m.outcomes, m.storeOps, m.feedLines, m.lastHeight)
	return m
}

// NewDefault registers on a fresh registry that also carries the Go and
// process collectors, and returns both.
func NewDefault() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg), reg
}

// Record counts one outcome.
func (m *Metrics) Record(_ context.Context, o ir.Outcome) error {
	m.outcomes.WithLabelValues(string(o.Kind), string(o.Status), string(o.Reason)).Inc()
	return nil
}

// ObserveHeight raises the last-seen block height gauge.
func (m *Metrics) ObserveHeight(height int64) {
	if height > 0 {
		m.lastHeight.Set(float64(height))
	}
}

// AddFeedLines counts feed lines by disposition ("delivered", "malformed",
// "filtered").
func (m *Metrics) AddFeedLines(disposition string, n int) {
	if n > 0 {
		m.feedLines.WithLabelValues(disposition).Add(float64(n))
	}
}

func (m *Metrics) observeStore(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

// InstrumentStore wraps b so every mutation is timed.
func (m *Metrics) InstrumentStore(b store.Backend) store.Backend {
	return &instrumentedStore{Backend: b, m: m}
}

type instrumentedStore struct {
	store.Backend
	m *Metrics
}

func (s *instrumentedStore) Create(ctx context.Context, collection, id string, r ir.ProfileRecord) error {
	start := time.Now()
	err := s.Backend.Create(ctx, collection, id, r)
	s.m.observeStore("create", start, err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.Backend.Delete(ctx, collection, id)
	s.m.observeStore("delete", start, err)
	return err
}

func (s *instrumentedStore) WriteOutcome(ctx context.Context, o ir.Outcome) error {
	start := time.Now()
	err := s.Backend.WriteOutcome(ctx, o)
	s.m.observeStore("write_outcome", start, err)
	return err
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
