package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	consulerrors "github.com/kmlixh/consulWatch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/capitan"
)

func TestTask_PollsWithFixedDelay(t *testing.T) {
	var polls, inFlight, overlap atomic.Int64
	poller := PollerFunc(func(ctx context.Context) error {
		if inFlight.Add(1) > 1 {
			overlap.Add(1)
		}
		defer inFlight.Add(-1)
		time.Sleep(2 * time.Millisecond)
		polls.Add(1)
		return nil
	})

	task := NewTask("kv", poller, 5*time.Millisecond, nil)
	assert.Equal(t, StateUninitialized, task.State())

	require.NoError(t, task.Start(context.Background()))
	assert.Eventually(t, func() bool { return polls.Load() >= 3 }, time.Second, time.Millisecond)

	task.Stop()
	assert.Equal(t, StateStopped, task.State())
	assert.Zero(t, overlap.Load(), "polls must never overlap")

	stopped := polls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, polls.Load(), "no polls after Stop")
}

func TestTask_FailuresAreAbsorbed(t *testing.T) {
	var calls atomic.Int64
	poller := PollerFunc(func(ctx context.Context) error {
		if calls.Add(1) <= 2 {
			return errors.New("connection refused")
		}
		return nil
	})

	task := NewTask("events", poller, time.Millisecond, nil)
	require.NoError(t, task.Start(context.Background()))
	assert.Eventually(t, func() bool { return calls.Load() >= 4 }, time.Second, time.Millisecond)
	task.Stop()

	status := task.Status()
	assert.Equal(t, "events", status.Name)
	assert.Equal(t, int64(2), status.Failures)
	assert.GreaterOrEqual(t, status.Polls, int64(3))
	assert.Equal(t, "connection refused", status.LastError)
}

func TestTask_StopCancelsInFlightPoll(t *testing.T) {
	entered := make(chan struct{})
	var returned atomic.Bool
	poller := PollerFunc(func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		returned.Store(true)
		return ctx.Err()
	})

	task := NewTask("blocking", poller, time.Hour, nil)
	require.NoError(t, task.Start(context.Background()))
	<-entered
	assert.Equal(t, StatePolling, task.State())

	done := make(chan struct{})
	go func() {
		task.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the in-flight poll")
	}
	assert.True(t, returned.Load())
	assert.Equal(t, StateStopped, task.State())
	assert.Zero(t, task.Status().Polls, "cancelled poll is not counted")
}

func TestTask_IdleBetweenPolls(t *testing.T) {
	var polls atomic.Int64
	task := NewTask("idle", PollerFunc(func(ctx context.Context) error {
		polls.Add(1)
		return nil
	}), time.Hour, nil)

	require.NoError(t, task.Start(context.Background()))
	assert.Eventually(t, func() bool { return task.State() == StateIdle }, time.Second, time.Millisecond)
	assert.Equal(t, int64(1), polls.Load())
	task.Stop()
}

func TestTask_StartTwice(t *testing.T) {
	task := NewTask("twice", PollerFunc(func(ctx context.Context) error { return nil }), time.Hour, nil)
	require.NoError(t, task.Start(context.Background()))
	assert.ErrorIs(t, task.Start(context.Background()), consulerrors.ErrAlreadyStarted)

	task.Stop()
	assert.ErrorIs(t, task.Start(context.Background()), consulerrors.ErrStopped)
	assert.NotPanics(t, task.Stop)
}

func TestTask_StopBeforeStart(t *testing.T) {
	task := NewTask("never", PollerFunc(func(ctx context.Context) error { return nil }), time.Hour, nil)
	task.Stop()
	assert.Equal(t, StateStopped, task.State())
	assert.Nil(t, task.Done())
}

func TestTask_ParentCancelStopsTask(t *testing.T) {
	var polls atomic.Int64
	task := NewTask("parent", PollerFunc(func(ctx context.Context) error {
		polls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}), time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, task.Start(ctx))
	assert.Eventually(t, func() bool { return polls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not exit after its parent context was cancelled")
	}
	assert.Equal(t, StateStopped, task.State())
	assert.ErrorIs(t, task.Start(context.Background()), consulerrors.ErrStopped)
	assert.NotPanics(t, task.Stop)
	assert.Equal(t, StateStopped, task.State())
}

func TestTask_StopRacingStart(t *testing.T) {
	for i := 0; i < 50; i++ {
		var polls atomic.Int64
		task := NewTask(fmt.Sprintf("race-%d", i), PollerFunc(func(ctx context.Context) error {
			polls.Add(1)
			return nil
		}), time.Millisecond, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = task.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			task.Stop()
		}()
		wg.Wait()

		if done := task.Done(); done != nil {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatalf("iteration %d: task kept running after Stop", i)
			}
		}
		assert.Equal(t, StateStopped, task.State())

		settled := polls.Load()
		time.Sleep(5 * time.Millisecond)
		assert.Equal(t, settled, polls.Load(), "iteration %d: polls after Stop", i)
	}
}

// signalLog 记录某个任务收到的 capitan 信号
type signalLog struct {
	mu     sync.Mutex
	events []string
}

func (l *signalLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, s)
}

func (l *signalLog) has(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == s {
			return true
		}
	}
	return false
}

func TestTask_EmitsLifecycleSignals(t *testing.T) {
	const name = "signals-task"
	log := &signalLog{}

	capitan.Hook(TaskStarted, func(_ context.Context, e *capitan.Event) {
		if task, _ := KeyTask.From(e); task == name {
			delay, _ := KeyDelay.From(e)
			log.add(fmt.Sprintf("started delay=%s", delay))
		}
	})
	capitan.Hook(TaskStateChanged, func(_ context.Context, e *capitan.Event) {
		if task, _ := KeyTask.From(e); task == name {
			oldState, _ := KeyOldState.From(e)
			newState, _ := KeyNewState.From(e)
			log.add(oldState + "->" + newState)
		}
	})
	capitan.Hook(PollFailed, func(_ context.Context, e *capitan.Event) {
		if task, _ := KeyTask.From(e); task == name {
			msg, _ := KeyError.From(e)
			log.add("failed " + msg)
		}
	})
	capitan.Hook(TaskStopped, func(_ context.Context, e *capitan.Event) {
		if task, _ := KeyTask.From(e); task == name {
			failures, _ := KeyFailures.From(e)
			log.add(fmt.Sprintf("stopped failures=%d", failures))
		}
	})

	var calls atomic.Int64
	task := NewTask(name, PollerFunc(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("connection refused")
		}
		return nil
	}), time.Hour, nil)

	require.NoError(t, task.Start(context.Background()))
	assert.Eventually(t, func() bool { return task.State() == StateIdle }, time.Second, time.Millisecond)
	task.Stop()

	for _, want := range []string{
		"started delay=1h0m0s",
		"uninitialized->polling",
		"failed connection refused",
		"polling->idle",
		"idle->stopped",
		"stopped failures=1",
	} {
		assert.Eventually(t, func() bool { return log.has(want) }, time.Second, time.Millisecond, want)
	}
}
