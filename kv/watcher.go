package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kmlixh/consulWatch/consul"
	"github.com/kmlixh/consulWatch/errors"
	"github.com/kmlixh/consulWatch/logger"
	"github.com/kmlixh/consulWatch/metrics"
)

// DefaultWait 阻塞查询的默认等待时间
const DefaultWait = 55 * time.Second

// Lister KV 的阻塞查询接口，由 consul.Client 实现
type Lister interface {
	ListKeys(ctx context.Context, prefix string, q consul.QueryOptions) ([]*consul.KeyValue, consul.QueryMeta, error)
}

// Sink 接收变更批次
type Sink interface {
	OnKvChange(ctx context.Context, batch ChangeBatch) error
}

// SinkFunc 函数形式的 Sink
type SinkFunc func(ctx context.Context, batch ChangeBatch) error

// OnKvChange 实现 Sink
func (f SinkFunc) OnKvChange(ctx context.Context, batch ChangeBatch) error {
	return f(ctx, batch)
}

// Watcher 监听一组 KV 前缀，每次轮询最多发布一个变更批次
type Watcher struct {
	client      Lister
	sink        Sink
	baseline    Sink
	contexts    []*Context
	byPrefix    map[string]*Context
	wait        time.Duration
	initialEmit bool
	log         *logger.Logger
	metrics     *metrics.Metrics

	// 同一时刻只允许一次 Poll
	mu sync.Mutex
}

// Option 监听器选项
type Option func(*Watcher)

// WithWait 设置阻塞查询等待时间
func WithWait(wait time.Duration) Option {
	return func(w *Watcher) {
		if wait > 0 {
			w.wait = wait
		}
	}
}

// WithInitialEmit 首次轮询时把已有内容作为新增发布，默认只建立基线
func WithInitialEmit(emit bool) Option {
	return func(w *Watcher) {
		w.initialEmit = emit
	}
}

// WithBaseline 未开启 initial emit 时，首次轮询得到的已有内容只交给这个 Sink，
// 主 Sink 仍然只收到之后的变更
func WithBaseline(sink Sink) Option {
	return func(w *Watcher) {
		w.baseline = sink
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

// NewWatcher 创建 KV 监听器，前缀不能为空也不能重复，缺少结尾 / 的前缀会被补上
func NewWatcher(client Lister, prefixes []string, sink Sink, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		client:   client,
		sink:     sink,
		byPrefix: make(map[string]*Context, len(prefixes)),
		wait:     DefaultWait,
		log:      logger.DefaultLogger(),
	}
	for _, prefix := range prefixes {
		prefix = NormalizePrefix(prefix)
		if prefix == "" {
			return nil, errors.ErrEmptyPrefix
		}
		if _, ok := w.byPrefix[prefix]; ok {
			return nil, errors.NewError(errors.ErrCodeValidation, fmt.Sprintf("duplicate kv context %s", prefix), nil)
		}
		c := newContext(prefix)
		w.contexts = append(w.contexts, c)
		w.byPrefix[prefix] = c
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.WithField("watch", "kv")
	return w, nil
}

// Contexts 返回所有上下文的状态快照，顺序与创建时一致
func (w *Watcher) Contexts() []ContextState {
	states := make([]ContextState, 0, len(w.contexts))
	for _, c := range w.contexts {
		states = append(states, c.State())
	}
	return states
}

// Context 按前缀查找上下文
func (w *Watcher) Context(prefix string) (*Context, bool) {
	c, ok := w.byPrefix[NormalizePrefix(prefix)]
	return c, ok
}

// Seed 用宿主自己加载配置时得到的索引和属性集合初始化基线
func (w *Watcher) Seed(prefix string, index uint64, keys []string) error {
	c, ok := w.byPrefix[NormalizePrefix(prefix)]
	if !ok {
		return errors.NewError(errors.ErrCodeUnknownContext, prefix, errors.ErrUnknownContext)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	c.commit(index, set)
	return nil
}

// pending 一个上下文本轮的计算结果，所有上下文完成后才统一提交
type pending struct {
	context *Context
	index   uint64
	keys    map[string]struct{}
	batch   ChangeBatch
	initial ChangeBatch
	commit  bool
	err     error
}

// Poll 并发查询所有上下文，汇总变更并最多发布一次。
// 某个上下文失败不影响其他上下文，其基线保持不变；返回的错误只用于观测。
func (w *Watcher) Poll(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	results := make([]pending, len(w.contexts))
	var wg sync.WaitGroup
	for i, c := range w.contexts {
		wg.Add(1)
		go func(i int, c *Context) {
			defer wg.Done()
			results[i] = w.pollContext(ctx, c)
		}(i, c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var merr *multierror.Error
	batch := make(ChangeBatch)
	initial := make(ChangeBatch)
	for _, r := range results {
		if r.err != nil {
			merr = multierror.Append(merr, r.err)
			continue
		}
		if !r.commit {
			continue
		}
		r.context.commit(r.index, r.keys)
		w.metrics.SetIndex(metrics.KindKV, r.context.prefix, r.index)
		batch.Merge(r.batch)
		initial.Merge(r.initial)
	}

	if len(initial) > 0 && w.baseline != nil {
		if err := w.baseline.OnKvChange(ctx, initial); err != nil {
			w.log.Warnf("kv baseline sink failed: %v", err)
		}
	}

	if len(batch) > 0 {
		changed, deleted := batch.Counts()
		w.log.Infof("publishing %d changed and %d deleted properties", changed, deleted)
		if err := w.sink.OnKvChange(ctx, batch); err != nil {
			w.log.Warnf("kv sink failed: %v", err)
		}
		w.metrics.AddBatch(changed, deleted)
	}
	return merr.ErrorOrNil()
}

func (w *Watcher) pollContext(ctx context.Context, c *Context) pending {
	result := pending{context: c}
	log := w.log.WithField("context", c.prefix)

	prev, known := c.Index()
	q := consul.QueryOptions{}
	if known {
		q.WaitIndex = prev
		q.WaitTime = w.wait
	}

	w.metrics.IncPoll(metrics.KindKV, c.prefix)
	entries, meta, err := w.client.ListKeys(ctx, c.prefix, q)
	if ctx.Err() != nil {
		return result
	}
	if err != nil {
		w.metrics.IncPollFailure(metrics.KindKV, c.prefix)
		log.WithField("error", err.Error()).Error("kv poll failed")
		result.err = fmt.Errorf("kv context %s: %w", c.prefix, err)
		return result
	}

	if !meta.IndexPresent || (known && meta.LastIndex == prev) {
		return result
	}

	since := prev
	if known && meta.LastIndex < prev {
		log.Warnf("index went backwards from %d to %d, rescanning", prev, meta.LastIndex)
		since = 0
	}

	batch, current := Diff(c.prefix, entries, since, c.existing())
	if !known && !w.initialEmit {
		log.Debugf("baseline established with %d properties at index %d", len(current), meta.LastIndex)
		result.initial = batch
		batch = nil
	}

	result.index = meta.LastIndex
	result.keys = current
	result.batch = batch
	result.commit = true
	return result
}
