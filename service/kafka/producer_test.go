package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendUsesTopicAndKey(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"type":"friend_request"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	p := NewProducerFrom(sp, "im.friend.events")

	require.NoError(t, p.Send(context.Background(), "f1", []byte(`{"type":"friend_request"}`)))
	require.NoError(t, p.Close())
}

func TestSendWrapsFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducerFrom(sp, "im.friend.events")

	err := p.Send(context.Background(), "f1", []byte("{}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestSendHonoursCancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewProducerFrom(sp, "im.friend.events")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Send(ctx, "f1", []byte("{}")), context.Canceled)
	require.NoError(t, p.Close())
}

func TestBuildBaseConfig(t *testing.T) {
	c := DefaultConfig()
	cfg, err := BuildBaseConfig(c)
	require.NoError(t, err)
	assert.Equal(t, sarama.CompressionSnappy, cfg.Producer.Compression)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)

	c.Version = "not-a-version"
	_, err = BuildBaseConfig(c)
	assert.Error(t, err)
}

func TestTopicDetailMinISR(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "1", *topicDetail(c).ConfigEntries["min.insync.replicas"])
	c.ReplicationFactor = 3
	assert.Equal(t, "2", *topicDetail(c).ConfigEntries["min.insync.replicas"])
}

func TestNewProducerValidates(t *testing.T) {
	_, err := NewProducer(Config{Topic: "x"})
	assert.Error(t, err)
	_, err = NewProducer(Config{Brokers: []string{"127.0.0.1:9092"}})
	assert.Error(t, err)
}
