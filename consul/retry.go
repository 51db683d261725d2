package consul

import (
	"context"
	"fmt"
	"time"

	"github.com/kmlixh/consulWatch/errors"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// RetryWithTimeout 重试写操作，只有传输错误才会重试，ctx 结束时立即返回。
// 监听的阻塞查询不使用它，失败的轮询由下一次调度重试。
func RetryWithTimeout(ctx context.Context, attempts int, delay time.Duration, operation func() error) error {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w: %v", err, lastErr)
			}
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		// 非传输错误重试也不会成功
		if errors.GetErrorCode(err) != errors.ErrCodeTransport {
			return err
		}

		if attempt < attempts-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
	return lastErr
}
