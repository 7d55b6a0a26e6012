package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCycle("committed", time.Second)
	m.ObserveCycle("committed", time.Second)
	m.ObserveCycle("guard_tripped", time.Second)
	m.Event("status_change")
	m.GuardTripped()
	m.FetchRetried()
	m.Dispatched("alert", nil)
	m.Dispatched("alert", errors.New("x"))
	m.Departed(3)
	m.Departed(0)
	m.Skipped(2)
	m.SetEntities(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("guard_tripped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("status_change")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardTrips))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("alert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("alert", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.departed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skippedRows))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.entities))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCycle("committed", time.Second)
		m.Event("x")
		m.GuardTripped()
		m.FetchRetried()
		m.Dispatched("alert", nil)
		m.Departed(1)
		m.Skipped(1)
		m.SetEntities(1)
	})
}

func TestServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	reg := prometheus.NewRegistry()
	New(reg).GuardTripped()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, reg) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, strings.Contains(body, "sheetwatch_integrity_guard_trips_total 1"), body)

	cancel()
	assert.NoError(t, <-done)
}
