package consul

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kmlixh/consulWatch/errors"
	"github.com/stretchr/testify/assert"
)

func TestRetryWithTimeout(t *testing.T) {
	transient := errors.NewError(errors.ErrCodeTransport, "fire event", stderrors.New("connection refused"))

	testCases := []struct {
		name     string
		failures []error
		calls    int
		wantErr  bool
	}{
		{"first_try", nil, 1, false},
		{"transient_then_ok", []error{transient, transient}, 3, false},
		{"always_transient", []error{transient, transient, transient, transient}, 3, true},
		{"validation_not_retried", []error{errors.ErrEmptyKey}, 1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			err := RetryWithTimeout(context.Background(), 3, time.Millisecond, func() error {
				calls++
				if calls <= len(tc.failures) {
					return tc.failures[calls-1]
				}
				return nil
			})
			assert.Equal(t, tc.calls, calls)
			assert.Equal(t, tc.wantErr, err != nil)
		})
	}
}

func TestRetryWithTimeout_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithTimeout(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.NewError(errors.ErrCodeTransport, "fire event", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
