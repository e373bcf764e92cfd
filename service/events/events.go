// Package events forwards committed domain events to the configured bus.
package events

import (
	"context"
	"encoding/json"
	"strings"

	"PPChat/service/kafka"
	"PPChat/service/natsx"
	"PPChat/tools/errs"
)

const (
	DriverNone  = "none"
	DriverNATS  = "nats"
	DriverKafka = "kafka"
)

// FriendBiz is the natsx route the friendship events go through.
const FriendBiz = "friend_event"

type Config struct {
	Driver  string            `yaml:"driver"`
	Subject string            `yaml:"subject"`
	Stream  bool              `yaml:"jetstream"`
	NATS    natsx.NatsxConfig `yaml:"nats"`
	Kafka   kafka.Config      `yaml:"kafka"`
}

// Publisher is what the domain services see.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}

// New builds the publisher for cfg.Driver; "none" or empty gives a no-op.
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return Nop{}, nil
	case DriverNATS:
		c, err := natsx.NewNatsxClient(cfg.NATS)
		if err != nil {
			return nil, err
		}
		mode := natsx.Core
		if cfg.Stream {
			mode = natsx.JetStream
		}
		subject := cfg.Subject
		if subject == "" {
			subject = "im.friend.events"
		}
		if err := c.RegisterRoute(natsx.NatsxRoute{Biz: FriendBiz, Subject: subject, Mode: mode}); err != nil {
			_ = c.Close()
			return nil, err
		}
		return &NATSPublisher{client: c, producer: natsx.NewNatsxProducer(c)}, nil
	case DriverKafka:
		p, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return &KafkaPublisher{producer: p}, nil
	}
	return nil, errs.ErrArgs.WrapMsg("unknown events driver", "driver", cfg.Driver)
}

// Identified payloads carry their own idempotency key.
type Identified interface {
	EventKey() string
}

type NATSPublisher struct {
	client   *natsx.NatsxClient
	producer *natsx.NatsxProducer
}

func (p *NATSPublisher) Publish(ctx context.Context, key string, payload any) error {
	data, msgID, err := encode(payload)
	if err != nil {
		return err
	}
	return p.producer.PublishOnce(ctx, FriendBiz, data, map[string]string{"key": key}, msgID)
}

func (p *NATSPublisher) Close() error { return p.client.Close() }

// sender is the slice of kafka.Producer used here.
type sender interface {
	Send(ctx context.Context, key string, value []byte) error
	Close() error
}

type KafkaPublisher struct {
	producer sender
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload any) error {
	data, _, err := encode(payload)
	if err != nil {
		return err
	}
	return p.producer.Send(ctx, key, data)
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }

type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

func encode(payload any) ([]byte, string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", errs.WrapMsg(err, "encode event")
	}
	var id string
	if v, ok := payload.(Identified); ok {
		id = v.EventKey()
	}
	return data, id, nil
}
