// Package event 监听 Consul 事件日志，保证每条事件按到达顺序只投递一次。
package event

import (
	"context"

	"github.com/kmlixh/consulWatch/consul"
)

// Lister 事件日志的阻塞查询接口，由 consul.Client 实现
type Lister interface {
	ListEvents(ctx context.Context, name string, q consul.QueryOptions) ([]*consul.Event, consul.QueryMeta, error)
}

// Message 投递给下游的事件消息，Payload 已解码
type Message struct {
	ID      string
	Name    string
	Index   uint64
	LTime   uint64
	Payload []byte
}

// Sink 接收新事件
type Sink interface {
	OnEvent(ctx context.Context, msg Message) error
}

// SinkFunc 函数形式的 Sink
type SinkFunc func(ctx context.Context, msg Message) error

// OnEvent 实现 Sink
func (f SinkFunc) OnEvent(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// NewMessage 把事件记录转换为下游消息
func NewMessage(e *consul.Event) Message {
	return Message{
		ID:      e.ID,
		Name:    e.Name,
		Index:   e.Index(),
		LTime:   e.LTime,
		Payload: e.Payload,
	}
}

// NewSince 返回 events 中位于已处理事件之后的部分。
// known 为 false 时全部视为新事件；找不到推导索引等于 index 的事件时
// 说明日志已被 Consul 滚动，同样全部视为新事件。
func NewSince(events []*consul.Event, index uint64, known bool) []*consul.Event {
	if !known {
		return events
	}
	for i, e := range events {
		if e.Index() == index {
			return events[i+1:]
		}
	}
	return events
}
