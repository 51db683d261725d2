package cursor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursor_ZeroValueIsUnset(t *testing.T) {
	var c Cursor
	idx, ok := c.Get()
	assert.False(t, ok)
	assert.Zero(t, idx)
}

func TestCursor_SetIfPresent(t *testing.T) {
	c := New()

	assert.True(t, c.SetIfPresent(10, true))
	idx, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, uint64(10), idx)

	// an absent index never erases a known one
	assert.False(t, c.SetIfPresent(0, false))
	idx, ok = c.Get()
	assert.True(t, ok)
	assert.Equal(t, uint64(10), idx)

	assert.True(t, c.SetIfPresent(0, true))
	idx, ok = c.Get()
	assert.True(t, ok)
	assert.Zero(t, idx)
}

func TestCursor_AbsentOnUnsetStaysUnset(t *testing.T) {
	c := New()
	c.SetIfPresent(42, false)
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestCursor_Reset(t *testing.T) {
	c := New()
	c.SetIfPresent(3, true)
	c.Reset()
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestCursor_ConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(i uint64) {
			defer wg.Done()
			c.SetIfPresent(i, true)
		}(uint64(i))
		go func() {
			defer wg.Done()
			if idx, ok := c.Get(); ok {
				assert.True(t, idx >= 1 && idx <= 50)
			}
		}()
	}
	wg.Wait()

	_, ok := c.Get()
	assert.True(t, ok)
}
