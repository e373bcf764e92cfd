package kafka

import (
	"context"

	"PPChat/logger"
	"PPChat/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// Producer 同步生产者，写单一 topic
type Producer struct {
	topic string
	sp    sarama.SyncProducer
}

func NewProducer(c Config) (*Producer, error) {
	if len(c.Brokers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("kafka brokers missing")
	}
	if c.Topic == "" {
		return nil, errs.ErrArgs.WrapMsg("kafka topic missing")
	}
	cfg, err := BuildBaseConfig(c)
	if err != nil {
		return nil, err
	}
	if c.AutoCreateTopicsOnStart {
		if err := ensureTopic(c, cfg); err != nil {
			return nil, err
		}
	}
	sp, err := sarama.NewSyncProducer(c.Brokers, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka producer init failed", "brokers", c.Brokers)
	}
	return NewProducerFrom(sp, c.Topic), nil
}

// NewProducerFrom wraps an existing sarama producer.
func NewProducerFrom(sp sarama.SyncProducer, topic string) *Producer {
	return &Producer{topic: topic, sp: sp}
}

// Send 同步发送；sarama 的同步接口不接受 ctx，调用前先检查是否已取消
func (p *Producer) Send(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	partition, offset, err := p.sp.SendMessage(msg)
	if err != nil {
		return errs.WrapMsg(err, "kafka send failed", "topic", p.topic)
	}
	logger.Debug("[Kafka] sent", zap.String("topic", p.topic), zap.Int32("partition", partition), zap.Int64("offset", offset))
	return nil
}

func (p *Producer) Close() error {
	return p.sp.Close()
}

func ensureTopic(c Config, cfg *sarama.Config) error {
	admin, err := sarama.NewClusterAdmin(c.Brokers, cfg)
	if err != nil {
		return errs.WrapMsg(err, "kafka admin init failed")
	}
	defer admin.Close()
	return EnsureTopics(admin, []string{c.Topic}, c)
}
