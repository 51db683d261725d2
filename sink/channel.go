package sink

import (
	"context"

	"github.com/kmlixh/consulWatch/event"
)

// Channel 把事件写入带缓冲的通道，供消费方按顺序读取
type Channel struct {
	ch chan event.Message
}

// NewChannel 创建通道 Sink
func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan event.Message, size)}
}

// C 返回只读通道
func (c *Channel) C() <-chan event.Message {
	return c.ch
}

// OnEvent 写入通道，通道已满时阻塞直到 ctx 结束
func (c *Channel) OnEvent(ctx context.Context, msg event.Message) error {
	select {
	case c.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
