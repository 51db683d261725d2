package sink

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/kmlixh/consulWatch/errors"
	"github.com/kmlixh/consulWatch/event"
	"github.com/kmlixh/consulWatch/kv"
)

// kvMessageKey KV 变更消息使用的分区键
const kvMessageKey = "kv"

// Kafka 把事件和变更批次转发到 Kafka 主题
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka 连接 Kafka 并创建同步生产者
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeTransport, "failed to create kafka producer", err)
	}
	return NewKafkaFromProducer(producer, topic), nil
}

// NewKafkaFromProducer 使用已有的生产者
func NewKafkaFromProducer(producer sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

// OnEvent 以事件名为键发送事件负载
func (k *Kafka) OnEvent(ctx context.Context, msg event.Message) error {
	m := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(msg.Name),
		Value: sarama.ByteEncoder(msg.Payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("consul-event-id"), Value: []byte(msg.ID)},
			{Key: []byte("consul-event-index"), Value: []byte(strconv.FormatUint(msg.Index, 10))},
		},
	}
	if _, _, err := k.producer.SendMessage(m); err != nil {
		return errors.NewError(errors.ErrCodeTransport, "failed to send event to kafka", err)
	}
	return nil
}

// OnKvChange 把变更批次编码为 JSON 发送，被删除的属性值为 null
func (k *Kafka) OnKvChange(ctx context.Context, batch kv.ChangeBatch) error {
	value, err := json.Marshal(batch.Values())
	if err != nil {
		return errors.NewError(errors.ErrCodeDecode, "failed to encode change batch", err)
	}
	m := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(kvMessageKey),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := k.producer.SendMessage(m); err != nil {
		return errors.NewError(errors.ErrCodeTransport, "failed to send kv change to kafka", err)
	}
	return nil
}

// Close 关闭生产者
func (k *Kafka) Close() error {
	return k.producer.Close()
}
