package event

import (
	"context"
	"sync"
	"time"

	"github.com/kmlixh/consulWatch/consul"
	"github.com/kmlixh/consulWatch/cursor"
	"github.com/kmlixh/consulWatch/logger"
	"github.com/kmlixh/consulWatch/metrics"
)

// DefaultWait 阻塞查询的默认等待时间
const DefaultWait = 5 * time.Second

// Watcher 事件监听器，一个实例对应一个事件流
type Watcher struct {
	client  Lister
	sink    Sink
	name    string
	wait    time.Duration
	cursor  *cursor.Cursor
	log     *logger.Logger
	metrics *metrics.Metrics

	// 游标来自非空的事件列表；空日志时 agent 返回的索引 1 不对应任何事件
	fromEvents bool

	// 同一时刻只允许一次 Poll
	mu sync.Mutex
}

// Option 监听器选项
type Option func(*Watcher)

// WithName 只监听指定名称的事件
func WithName(name string) Option {
	return func(w *Watcher) {
		w.name = name
	}
}

// WithWait 设置阻塞查询等待时间
func WithWait(wait time.Duration) Option {
	return func(w *Watcher) {
		if wait > 0 {
			w.wait = wait
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(log *logger.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// NewWatcher 创建事件监听器
func NewWatcher(client Lister, sink Sink, opts ...Option) *Watcher {
	w := &Watcher{
		client: client,
		sink:   sink,
		wait:   DefaultWait,
		cursor: cursor.New(),
		log:    logger.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.WithFields(map[string]interface{}{
		"watch": "event",
		"name":  w.name,
	})
	return w
}

// Name 返回监听的事件名称，空字符串表示全部事件
func (w *Watcher) Name() string {
	return w.name
}

// Index 返回最近一次观察到的索引
func (w *Watcher) Index() (uint64, bool) {
	return w.cursor.Get()
}

// Poll 执行一次阻塞查询并把新事件投递给 Sink。
// 查询失败时游标保持不变，错误只用于观测，调用方无需处理。
func (w *Watcher) Poll(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev, known := w.cursor.Get()
	q := consul.QueryOptions{}
	if known {
		q.WaitIndex = prev
		q.WaitTime = w.wait
	}

	w.metrics.IncPoll(metrics.KindEvent, w.name)
	events, meta, err := w.client.ListEvents(ctx, w.name, q)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		w.metrics.IncPollFailure(metrics.KindEvent, w.name)
		w.log.WithField("error", err.Error()).Error("event poll failed")
		return err
	}

	fromEvents := w.fromEvents
	if w.cursor.SetIfPresent(meta.LastIndex, meta.IndexPresent) {
		w.metrics.SetIndex(metrics.KindEvent, w.name, meta.LastIndex)
		w.fromEvents = len(events) > 0
	}

	fresh := NewSince(events, prev, known)
	if known && len(fresh) == len(events) && len(events) > 0 {
		if fromEvents {
			w.log.Warnf("last seen event %d not in log, delivering all %d events", prev, len(events))
		} else {
			w.log.Debugf("first events after index %d, delivering %d events", prev, len(events))
		}
	}
	for _, e := range fresh {
		msg := NewMessage(e)
		if err := w.sink.OnEvent(ctx, msg); err != nil {
			w.log.WithField("id", msg.ID).Warnf("event sink failed: %v", err)
		}
	}
	if len(fresh) > 0 {
		w.log.Debugf("delivered %d events, index %d", len(fresh), meta.LastIndex)
	}
	w.metrics.AddEvents(w.name, len(fresh))
	return nil
}
