package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kmlixh/consulWatch/errors"
	"github.com/kmlixh/consulWatch/logger"
	"github.com/qmuntal/stateless"
	"github.com/zoobzio/capitan"
)

// Poller 执行一次轮询，event.Watcher 与 kv.Watcher 都实现了它
type Poller interface {
	Poll(ctx context.Context) error
}

// PollerFunc 函数形式的 Poller
type PollerFunc func(ctx context.Context) error

// Poll 实现 Poller
func (f PollerFunc) Poll(ctx context.Context) error {
	return f(ctx)
}

// State 任务状态
type State string

const (
	StateUninitialized State = "uninitialized"
	StatePolling       State = "polling"
	StateIdle          State = "idle"
	StateStopped       State = "stopped"
)

const (
	triggerPoll     = "poll"
	triggerComplete = "complete"
	triggerStop     = "stop"
)

// TaskStatus 任务状态快照
type TaskStatus struct {
	Name      string        `json:"name"`
	State     State         `json:"state"`
	Delay     time.Duration `json:"delay"`
	Polls     int64         `json:"polls"`
	Failures  int64         `json:"failures"`
	LastError string        `json:"last_error,omitempty"`
}

// Task 以固定延迟反复执行 Poller：上一次 Poll 返回后再等待 delay 开始下一次
type Task struct {
	name   string
	poller Poller
	delay  time.Duration
	log    *logger.Logger
	sm     *stateless.StateMachine

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	polls    atomic.Int64
	failures atomic.Int64
	lastErr  atomic.Value
}

// NewTask 创建任务
func NewTask(name string, poller Poller, delay time.Duration, log *logger.Logger) *Task {
	if log == nil {
		log = logger.DefaultLogger()
	}
	t := &Task{
		name:   name,
		poller: poller,
		delay:  delay,
		log:    log.WithField("task", name),
		sm:     stateless.NewStateMachine(StateUninitialized),
	}
	t.lastErr.Store("")
	t.configure()
	return t
}

func (t *Task) configure() {
	t.sm.Configure(StateUninitialized).
		Permit(triggerPoll, StatePolling).
		Permit(triggerStop, StateStopped)

	t.sm.Configure(StatePolling).
		Permit(triggerComplete, StateIdle).
		Permit(triggerStop, StateStopped)

	t.sm.Configure(StateIdle).
		Permit(triggerPoll, StatePolling).
		Permit(triggerStop, StateStopped)

	t.sm.Configure(StateStopped).
		Ignore(triggerStop)

	t.sm.OnTransitioned(func(ctx context.Context, tr stateless.Transition) {
		capitan.Emit(ctx, TaskStateChanged,
			KeyTask.Field(t.name),
			KeyOldState.Field(string(tr.Source.(State))),
			KeyNewState.Field(string(tr.Destination.(State))),
		)
	})
}

func (t *Task) fire(trigger string) {
	if err := t.sm.FireCtx(context.Background(), trigger); err != nil {
		t.log.Warnf("invalid transition %s from %s: %v", trigger, t.State(), err)
	}
}

// Name 返回任务名称
func (t *Task) Name() string {
	return t.name
}

// State 返回当前状态
func (t *Task) State() State {
	return t.sm.MustState().(State)
}

// Status 返回状态快照
func (t *Task) Status() TaskStatus {
	return TaskStatus{
		Name:      t.name,
		State:     t.State(),
		Delay:     t.delay,
		Polls:     t.polls.Load(),
		Failures:  t.failures.Load(),
		LastError: t.lastErr.Load().(string),
	}
}

// Start 在后台启动轮询，ctx 结束或调用 Stop 时退出
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.State() == StateStopped {
		return errors.ErrStopped
	}
	if t.started {
		return errors.ErrAlreadyStarted
	}
	t.started = true

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	capitan.Emit(ctx, TaskStarted,
		KeyTask.Field(t.name),
		KeyDelay.Field(t.delay),
	)
	t.log.Infof("watch task started, delay %s", t.delay)
	go t.run(runCtx)
	return nil
}

// Stop 取消进行中的查询并等待任务退出，之后不会再有任何投递
func (t *Task) Stop() {
	t.mu.Lock()
	t.stopped = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		t.finish()
		return
	}
	cancel()
	<-done
}

// finish 进入 stopped 状态，无论是 Stop 还是外部 ctx 结束都只执行一次
func (t *Task) finish() {
	t.stopOnce.Do(func() {
		t.fire(triggerStop)
		capitan.Emit(context.Background(), TaskStopped,
			KeyTask.Field(t.name),
			KeyFailures.Field(int(t.failures.Load())),
		)
		t.log.Info("watch task stopped")
	})
}

// Done 任务退出后关闭，未启动时返回 nil
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)
	defer t.finish()

	for {
		t.fire(triggerPoll)
		err := t.poller.Poll(ctx)
		if ctx.Err() != nil {
			return
		}
		t.polls.Add(1)
		if err != nil {
			t.failures.Add(1)
			t.lastErr.Store(err.Error())
			capitan.Emit(ctx, PollFailed,
				KeyTask.Field(t.name),
				KeyError.Field(err.Error()),
			)
		}
		t.fire(triggerComplete)

		timer := time.NewTimer(t.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
