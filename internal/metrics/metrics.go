// Package metrics exposes Prometheus instruments for the monitor.
//
// All methods are safe on a nil *Metrics, so components can take an
// optional metrics handle without branching.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sheetwatch"

// Metrics holds the instruments.
type Metrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	events        *prometheus.CounterVec
	guardTrips    prometheus.Counter
	fetchRetries  prometheus.Counter
	dispatches    *prometheus.CounterVec
	departed      prometheus.Counter
	skippedRows   prometheus.Counter
	entities      prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Diff cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of diff cycles, fetch included",
				Buckets:   prometheus.DefBuckets,
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Classified diff events by type",
			},
			[]string{"type"},
		),
		guardTrips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "integrity_guard_trips_total",
				Help:      "Snapshot commits refused by the shrink guard",
			},
		),
		fetchRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Failed fetch attempts that were retried",
			},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Notification deliveries by kind and result",
			},
			[]string{"kind", "result"},
		),
		departed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "departed_entities_total",
				Help:      "Entities dropped from the snapshot because they left the source",
			},
		),
		skippedRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "malformed_rows_total",
				Help:      "Source rows skipped for missing required cells",
			},
		),
		entities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entities",
				Help:      "Entities in the committed snapshot",
			},
		),
	}
	reg.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.events,
		m.guardTrips,
		m.fetchRetries,
		m.dispatches,
		m.departed,
		m.skippedRows,
		m.entities,
	)
	return m
}

// ObserveCycle counts a finished cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// Event counts one diff event.
func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// GuardTripped counts a refused commit.
func (m *Metrics) GuardTripped() {
	if m == nil {
		return
	}
	m.guardTrips.Inc()
}

// FetchRetried counts a retried fetch attempt.
func (m *Metrics) FetchRetried() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

// Dispatched counts a delivery; err == nil means success.
func (m *Metrics) Dispatched(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dispatches.WithLabelValues(kind, result).Inc()
}

// Departed counts entities that left the source.
func (m *Metrics) Departed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.departed.Add(float64(n))
}

// Skipped counts malformed rows.
func (m *Metrics) Skipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedRows.Add(float64(n))
}

// SetEntities records the committed snapshot size.
func (m *Metrics) SetEntities(n int) {
	if m == nil {
		return
	}
	m.entities.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
