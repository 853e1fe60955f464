package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/worldex/world"
)

func TestMetricsRecordRouting(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("worldex")
	require.NoError(t, m.Register(reg))

	h := newHarness(t, ExchangeOptions{Metrics: m}, "A", "B")

	require.NoError(t, h.ch("A").Send(SpawnInto("B", payload{X: 1})))
	require.NoError(t, h.ch("A").Send(SpawnInto("nowhere", payload{X: 2})))

	nextFailure(t, h.router)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoutingFailures.WithLabelValues(string(ReasonUnknownDestination))))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.MessagesRouted.WithLabelValues("A", "B")) == 1
	}, waitTimeout, time.Millisecond)

	wB := world.New("B", testSchema())
	wk, err := NewWorker(wB, h.ch("B"), WorkerOptions{Metrics: m})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- wk.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.MessagesExecuted.WithLabelValues("B", "spawn", "ok")) == 1
	}, waitTimeout, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, testutil.CollectAndCount(m.DeliveryLatency))
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, NewMetrics("worldex").Register(reg))
	assert.Error(t, NewMetrics("worldex").Register(reg))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.routed("A", "B", time.Now())
		m.routingFailed(ReasonShutdown)
		m.failureDropped()
		m.executed("A", KindSpawn, nil)
		m.depth("A", directionInbound, 3)
	})
}
