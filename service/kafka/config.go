package kafka

import (
	"strings"
	"time"

	"PPChat/tools/errs"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers                 []string `yaml:"brokers"`
	Topic                   string   `yaml:"topic"`
	Version                 string   `yaml:"version"`     // 例如 "2.1.0"
	PartitionsPerTopic      int32    `yaml:"partitions"`  // 单机演示=8
	ReplicationFactor       int16    `yaml:"replication"` // 单机=1；生产=3
	ProducerRetries         int      `yaml:"retries"`
	ProducerCompression     string   `yaml:"compression"` // none/snappy/lz4/zstd
	AutoCreateTopicsOnStart bool     `yaml:"autoCreateTopics"`
}

func DefaultConfig() Config {
	return Config{
		Brokers:                 []string{"127.0.0.1:9092"},
		Topic:                   "im.friend.events",
		Version:                 "2.1.0",
		PartitionsPerTopic:      8,
		ReplicationFactor:       1,
		ProducerRetries:         5,
		ProducerCompression:     "snappy",
		AutoCreateTopicsOnStart: true,
	}
}

// BuildBaseConfig 生产者配置；Key 决定分区，保证同一 friendship 的事件有序
func BuildBaseConfig(c Config) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("invalid kafka version", "version", c.Version)
		}
		cfg.Version = v
	}

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 1
	}
	cfg.Producer.Retry.Max = c.ProducerRetries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}
