// Package sink 提供事件与 KV 变更的下游实现。
package sink

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/kmlixh/consulWatch/event"
	"github.com/kmlixh/consulWatch/kv"
)

// Events 把事件依次投递给多个 Sink，全部执行后合并错误
func Events(sinks ...event.Sink) event.Sink {
	return event.SinkFunc(func(ctx context.Context, msg event.Message) error {
		var merr *multierror.Error
		for _, s := range sinks {
			if err := s.OnEvent(ctx, msg); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		return merr.ErrorOrNil()
	})
}

// Changes 把变更批次依次投递给多个 Sink，全部执行后合并错误
func Changes(sinks ...kv.Sink) kv.Sink {
	return kv.SinkFunc(func(ctx context.Context, batch kv.ChangeBatch) error {
		var merr *multierror.Error
		for _, s := range sinks {
			if err := s.OnKvChange(ctx, batch); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		return merr.ErrorOrNil()
	})
}
