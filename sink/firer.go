package sink

import (
	"context"

	"github.com/kmlixh/consulWatch/consul"
	"github.com/kmlixh/consulWatch/event"
)

// Firer 发布 Consul 用户事件，由 consul.Client 实现
type Firer interface {
	FireEvent(ctx context.Context, name string, payload []byte) (*consul.Event, error)
}

// EventFirer 出站适配器，把负载作为指定名称的 Consul 事件发布
type EventFirer struct {
	firer Firer
	name  string
}

// NewEventFirer 创建出站适配器
func NewEventFirer(firer Firer, name string) *EventFirer {
	return &EventFirer{firer: firer, name: name}
}

// Send 发布负载并返回对应的消息
func (f *EventFirer) Send(ctx context.Context, payload []byte) (event.Message, error) {
	e, err := f.firer.FireEvent(ctx, f.name, payload)
	if err != nil {
		return event.Message{}, err
	}
	return event.NewMessage(e), nil
}

// OnEvent 转发其他来源的消息，事件名使用适配器自己的名称
func (f *EventFirer) OnEvent(ctx context.Context, msg event.Message) error {
	_, err := f.Send(ctx, msg.Payload)
	return err
}
