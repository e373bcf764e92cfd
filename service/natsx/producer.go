package natsx

import (
	"context"

	"PPChat/logger"
	"PPChat/tools/errs"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// MsgIDHeader is honoured by JetStream for duplicate suppression.
const MsgIDHeader = "Nats-Msg-Id"

// NatsxProducer 生产端，按 Biz 找到 subject 后发送
type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

func (p *NatsxProducer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return errs.ErrInternalServer.WrapMsg("nats route not found", "biz", biz)
	}
	msg := newMsg(r.Subject, data, hdr)
	switch r.Mode {
	case Core:
		if err := p.c.nc.PublishMsg(msg); err != nil {
			return errs.WrapMsg(err, "nats publish failed", "subject", r.Subject)
		}
		return nil
	case JetStream:
		ack, err := p.c.js.PublishMsg(msg, nats.Context(ctx))
		if err != nil {
			return errs.WrapMsg(err, "jetstream publish failed", "subject", r.Subject)
		}
		logger.Debug("[NATS] published", zap.String("stream", ack.Stream), zap.Uint64("seq", ack.Sequence))
		return nil
	}
	return errs.ErrInternalServer.WrapMsg("unsupported nats mode", "mode", r.Mode)
}

// PublishOnce 带 Nats-Msg-Id 发送；msgID 为空时生成一个
func (p *NatsxProducer) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	return p.Publish(ctx, biz, data, withMsgID(hdr, msgID))
}

func withMsgID(hdr map[string]string, msgID string) map[string]string {
	out := make(map[string]string, len(hdr)+1)
	for k, v := range hdr {
		out[k] = v
	}
	if msgID == "" {
		msgID = uuid.NewString()
	}
	out[MsgIDHeader] = msgID
	return out
}

func newMsg(subject string, data []byte, hdr map[string]string) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	return msg
}
