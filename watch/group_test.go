package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kmlixh/consulWatch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingPoller(n *atomic.Int64) Poller {
	return PollerFunc(func(ctx context.Context) error {
		n.Add(1)
		return nil
	})
}

func TestGroup_AddGetRemove(t *testing.T) {
	g := NewGroup(nil)
	var n atomic.Int64

	require.NoError(t, g.Add("kv", countingPoller(&n), time.Hour))
	require.NoError(t, g.Add("events", countingPoller(&n), time.Hour))
	assert.Equal(t, 2, g.Count())
	assert.Equal(t, []string{"events", "kv"}, g.List())

	task, ok := g.Get("kv")
	require.True(t, ok)
	assert.Equal(t, "kv", task.Name())

	require.NoError(t, g.Remove("kv"))
	_, ok = g.Get("kv")
	assert.False(t, ok)
	assert.Equal(t, StateStopped, task.State())
}

func TestGroup_Validation(t *testing.T) {
	g := NewGroup(nil)
	var n atomic.Int64

	testCases := []struct {
		name string
		add  func() error
		code errors.ErrorCode
	}{
		{"empty_name", func() error { return g.Add("", countingPoller(&n), time.Second) }, errors.ErrCodeValidation},
		{"nil_poller", func() error { return g.Add("x", nil, time.Second) }, errors.ErrCodeValidation},
		{"duplicate", func() error {
			_ = g.Add("dup", countingPoller(&n), time.Second)
			return g.Add("dup", countingPoller(&n), time.Second)
		}, errors.ErrCodeValidation},
		{"remove_missing", func() error { return g.Remove("missing") }, errors.ErrCodeValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.add()
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.GetErrorCode(err))
		})
	}
}

func TestGroup_StartAndStopAll(t *testing.T) {
	g := NewGroup(nil)
	var a, b, late atomic.Int64
	require.NoError(t, g.Add("a", countingPoller(&a), time.Millisecond))
	require.NoError(t, g.Add("b", countingPoller(&b), time.Millisecond))

	require.NoError(t, g.Start(context.Background()))
	assert.ErrorIs(t, g.Start(context.Background()), errors.ErrAlreadyStarted)

	require.NoError(t, g.Add("late", countingPoller(&late), time.Millisecond))
	assert.Eventually(t, func() bool {
		return a.Load() > 1 && b.Load() > 1 && late.Load() > 1
	}, time.Second, time.Millisecond)

	statuses := g.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, "a", statuses[0].Name)

	g.StopAll()
	assert.Zero(t, g.Count())
	stopped := a.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, a.Load())
}
