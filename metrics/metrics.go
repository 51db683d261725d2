package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "consulwatch"

// 资源类型
const (
	KindEvent = "event"
	KindKV    = "kv"
)

// Metrics 监听指标收集，同时导出到 Prometheus。
// nil 的 *Metrics 可以安全调用，所有方法都是空操作。
type Metrics struct {
	registry     *prometheus.Registry
	polls        *prometheus.CounterVec
	pollFailures *prometheus.CounterVec
	events       *prometheus.CounterVec
	kvChanges    *prometheus.CounterVec
	batches      prometheus.Counter
	index        *prometheus.GaugeVec

	PollCount        atomic.Int64
	PollFailureCount atomic.Int64
	EventCount       atomic.Int64
	ChangeCount      atomic.Int64
	DeletionCount    atomic.Int64
	lastReset        atomic.Int64
}

// New 创建新的指标收集器，使用独立的 Registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "The number of blocking queries issued",
		}, []string{"kind", "resource"}),
		pollFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "The number of failed blocking queries",
		}, []string{"kind", "resource"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "The number of consul events delivered downstream",
		}, []string{"name"}),
		kvChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kv_changes_total",
			Help:      "The number of kv properties published, by change type",
		}, []string{"type"}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kv_batches_total",
			Help:      "The number of change batches published",
		}),
		index: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_index",
			Help:      "The last consul index observed per watched resource",
		}, []string{"kind", "resource"}),
	}
	m.lastReset.Store(time.Now().UnixNano())
	return m
}

// Registry 返回 Prometheus Registry，用于暴露 /metrics
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncPoll 增加查询计数
func (m *Metrics) IncPoll(kind, resource string) {
	if m == nil {
		return
	}
	m.PollCount.Add(1)
	m.polls.WithLabelValues(kind, resource).Inc()
}

// IncPollFailure 增加查询失败计数
func (m *Metrics) IncPollFailure(kind, resource string) {
	if m == nil {
		return
	}
	m.PollFailureCount.Add(1)
	m.pollFailures.WithLabelValues(kind, resource).Inc()
}

// AddEvents 增加已投递事件数
func (m *Metrics) AddEvents(name string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EventCount.Add(int64(n))
	m.events.WithLabelValues(name).Add(float64(n))
}

// AddBatch 记录一次发布的变更批次
func (m *Metrics) AddBatch(changed, deleted int) {
	if m == nil {
		return
	}
	m.ChangeCount.Add(int64(changed))
	m.DeletionCount.Add(int64(deleted))
	m.kvChanges.WithLabelValues("changed").Add(float64(changed))
	m.kvChanges.WithLabelValues("deleted").Add(float64(deleted))
	m.batches.Inc()
}

// SetIndex 记录资源的最新索引
func (m *Metrics) SetIndex(kind, resource string, index uint64) {
	if m == nil {
		return
	}
	m.index.WithLabelValues(kind, resource).Set(float64(index))
}

// Reset 重置计数器快照，Prometheus 侧的计数保持单调
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.PollCount.Store(0)
	m.PollFailureCount.Store(0)
	m.EventCount.Store(0)
	m.ChangeCount.Store(0)
	m.DeletionCount.Store(0)
	m.lastReset.Store(time.Now().UnixNano())
}

// GetMetrics 获取当前指标
func (m *Metrics) GetMetrics() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	last := time.Unix(0, m.lastReset.Load())
	return map[string]interface{}{
		"poll_count":         m.PollCount.Load(),
		"poll_failure_count": m.PollFailureCount.Load(),
		"event_count":        m.EventCount.Load(),
		"change_count":       m.ChangeCount.Load(),
		"deletion_count":     m.DeletionCount.Load(),
		"last_reset_time":    last,
		"uptime_seconds":     time.Since(last).Seconds(),
	}
}
