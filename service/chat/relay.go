package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"PPChat/logger"
	"PPChat/module/chat/model"
	"PPChat/service/metrics"
	"PPChat/service/storage"
	"PPChat/tools/decode"
	"PPChat/tools/errs"
	"PPChat/tools/safe"

	"go.uber.org/zap"
)

// RoomAccess is the slice of the room resolver the relay needs.
type RoomAccess interface {
	Room(ctx context.Context, userID, roomID string) (*model.ChatRoom, error)
	RecordMessage(ctx context.Context, m model.Message) error
}

const saveQueueSize = 1024

// Relay handles the room frames of one node. Persistence runs on a single
// background writer so a slow store never holds up a connection's reads;
// messages are saved in the order they were relayed.
type Relay struct {
	hub         *Hub
	rooms       RoomAccess
	log         storage.MessageLog
	now         func() time.Time
	saveTimeout time.Duration

	saves    chan model.Message
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewRelay(hub *Hub, rooms RoomAccess, log storage.MessageLog, now func() time.Time) *Relay {
	safe.MustNotNil(hub, "hub")
	safe.MustNotNil(rooms, "room access")
	if now == nil {
		now = time.Now
	}
	r := &Relay{
		hub:         hub,
		rooms:       rooms,
		log:         log,
		now:         now,
		saveTimeout: 3 * time.Second,
		saves:       make(chan model.Message, saveQueueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	safe.SafeGo("relay-save", r.saveLoop)
	return r
}

// Close stops the writer after it has saved everything already queued.
// Messages relayed afterwards are delivered but not persisted.
func (r *Relay) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	return nil
}

// Handle routes one inbound frame.
func (r *Relay) Handle(ctx context.Context, c *Conn, event string, data map[string]any) {
	switch event {
	case EventJoinRoom:
		r.join(ctx, c, data)
	case EventLeaveRoom:
		r.leave(c, data)
	case EventChatMessage:
		r.message(c, data)
	default:
		c.SendFrame(EventError, ErrorPayload{Message: "unknown event: " + event})
	}
}

func (r *Relay) join(ctx context.Context, c *Conn, data map[string]any) {
	id := roomIDOf(data)
	if id == "" {
		c.SendFrame(EventJoinRoomAck, Ack{Status: StatusError, Message: "roomId is required"})
		return
	}
	if _, err := r.rooms.Room(ctx, c.UserID, id); err != nil {
		c.SendFrame(EventJoinRoomAck, Ack{Status: StatusError, RoomID: id, Message: errs.PublicMessage(err)})
		return
	}
	r.hub.Join(id, c)
	logger.Debug("[Relay] joined", zap.String("user", c.UserID), zap.String("room", id))
	c.SendFrame(EventJoinRoomAck, Ack{Status: StatusOK, RoomID: id})
}

func (r *Relay) leave(c *Conn, data map[string]any) {
	id := roomIDOf(data)
	if id == "" {
		c.SendFrame(EventLeaveRoomAck, Ack{Status: StatusError, Message: "roomId is required"})
		return
	}
	r.hub.Leave(id, c)
	c.SendFrame(EventLeaveRoomAck, Ack{Status: StatusOK, RoomID: id})
}

func (r *Relay) message(c *Conn, data map[string]any) {
	p, err := DecodePayload[ChatMessagePayload](data)
	if err != nil {
		r.reject(c, "", "malformed message")
		return
	}
	if msg := validateMessage(c, p); msg != "" {
		r.reject(c, p.MessageID, msg)
		return
	}
	if !r.hub.Joined(p.RoomID, c) {
		r.reject(c, p.MessageID, "join the room first")
		return
	}

	now := r.now()
	p.Timestamp = now.UnixMilli()
	frame, err := EncodeFrame(EventChatMessage, p)
	if err != nil {
		r.reject(c, p.MessageID, "internal server error")
		return
	}
	members := r.hub.Members(p.RoomID)
	for _, m := range members {
		if !m.Send(frame) {
			logger.Debug("[Relay] member queue full", zap.String("conn", m.ID), zap.String("room", p.RoomID))
		}
	}
	metrics.MessagesRelayed.WithLabelValues("ok").Inc()
	c.SendFrame(EventChatMessageAck, Ack{Status: StatusOK, MessageID: p.MessageID})

	r.enqueue(model.Message{
		ChatRoomID: p.RoomID,
		SenderID:   p.SenderID,
		Content:    p.Message,
		MessageID:  p.MessageID,
		Timestamp:  now,
	})
}

func (r *Relay) reject(c *Conn, messageID, msg string) {
	metrics.MessagesRelayed.WithLabelValues("rejected").Inc()
	c.SendFrame(EventChatMessageAck, Ack{Status: StatusError, MessageID: messageID, Message: msg})
}

func (r *Relay) enqueue(m model.Message) {
	select {
	case <-r.stop:
		logger.Warn("[Relay] closed, message not saved", zap.String("room", m.ChatRoomID), zap.String("messageId", m.MessageID))
		return
	default:
	}
	select {
	case r.saves <- m:
	default:
		metrics.MessagesRelayed.WithLabelValues("unsaved").Inc()
		logger.Warn("[Relay] save queue full, message not saved", zap.String("room", m.ChatRoomID), zap.String("messageId", m.MessageID))
	}
}

func (r *Relay) saveLoop() {
	defer close(r.done)
	for {
		select {
		case m := <-r.saves:
			r.save(m)
		case <-r.stop:
			// 退出前把队列里剩下的写完
			for {
				select {
				case m := <-r.saves:
					r.save(m)
				default:
					return
				}
			}
		}
	}
}

// save writes history and the room preview; failures are logged only.
func (r *Relay) save(m model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), r.saveTimeout)
	defer cancel()
	if r.log != nil {
		if _, err := r.log.Append(ctx, m); err != nil {
			logger.Warn("[Relay] append message log", zap.String("room", m.ChatRoomID), zap.Error(err))
		}
	}
	if err := r.rooms.RecordMessage(ctx, m); err != nil {
		logger.Warn("[Relay] update room preview", zap.String("room", m.ChatRoomID), zap.Error(err))
	}
}

func roomIDOf(data map[string]any) string {
	id, err := decode.ReadString(data, "roomId")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

func validateMessage(c *Conn, p *ChatMessagePayload) string {
	switch {
	case strings.TrimSpace(p.RoomID) == "":
		return "roomId is required"
	case p.Message == "":
		return "message is required"
	case p.SenderID == "":
		return "senderId is required"
	case p.MessageID == "":
		return "messageId is required"
	case p.SenderID != c.UserID:
		return "senderId does not match the connection"
	}
	return ""
}
