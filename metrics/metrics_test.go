package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncPoll(KindKV, "config/app/")
	m.IncPoll(KindKV, "config/app/")
	m.IncPollFailure(KindKV, "config/app/")
	m.AddEvents("deploy", 3)
	m.AddBatch(2, 1)
	m.SetIndex(KindEvent, "deploy", 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.polls.WithLabelValues(KindKV, "config/app/")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollFailures.WithLabelValues(KindKV, "config/app/")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.events.WithLabelValues("deploy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.kvChanges.WithLabelValues("changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.kvChanges.WithLabelValues("deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.index.WithLabelValues(KindEvent, "deploy")))

	snapshot := m.GetMetrics()
	assert.Equal(t, int64(2), snapshot["poll_count"])
	assert.Equal(t, int64(1), snapshot["poll_failure_count"])
	assert.Equal(t, int64(3), snapshot["event_count"])
	assert.Equal(t, int64(2), snapshot["change_count"])
	assert.Equal(t, int64(1), snapshot["deletion_count"])
}

func TestMetrics_Reset(t *testing.T) {
	m := New()
	m.IncPoll(KindEvent, "")
	m.Reset()

	assert.Equal(t, int64(0), m.GetMetrics()["poll_count"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues(KindEvent, "")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncPoll(KindKV, "x")
		m.IncPollFailure(KindKV, "x")
		m.AddEvents("x", 1)
		m.AddBatch(1, 1)
		m.SetIndex(KindKV, "x", 1)
		m.Reset()
	})
	assert.Nil(t, m.Registry())
	assert.Empty(t, m.GetMetrics())
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
