package sink

import (
	"context"

	"github.com/kmlixh/consulWatch/event"
	"github.com/kmlixh/consulWatch/kv"
	"github.com/kmlixh/consulWatch/logger"
	"go.uber.org/zap"
)

// Log 把事件和变更写入日志
type Log struct {
	log *zap.Logger
}

// NewLog 创建日志 Sink
func NewLog(l *logger.Logger) *Log {
	if l == nil {
		l = logger.DefaultLogger()
	}
	return &Log{log: l.Zap()}
}

// OnEvent 实现 event.Sink
func (l *Log) OnEvent(ctx context.Context, msg event.Message) error {
	l.log.Info("consul event",
		zap.String("id", msg.ID),
		zap.String("name", msg.Name),
		zap.Uint64("index", msg.Index),
		zap.Uint64("ltime", msg.LTime),
		zap.ByteString("payload", msg.Payload),
	)
	return nil
}

// OnKvChange 实现 kv.Sink
func (l *Log) OnKvChange(ctx context.Context, batch kv.ChangeBatch) error {
	changed, deleted := batch.Counts()
	l.log.Info("kv properties changed",
		zap.Strings("names", batch.Names()),
		zap.Int("changed", changed),
		zap.Int("deleted", deleted),
	)
	return nil
}
