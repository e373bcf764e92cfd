package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"PPChat/module/chat/model"

	"github.com/redis/go-redis/v9"
)

// 会话历史：每个房间一个 Redis Stream

const defaultStreamMaxLen = 100_000

const DefaultHistoryLimit = 50

// MessageLog is the per-room history written after a message is relayed.
// History returns at most limit messages, newest first.
type MessageLog interface {
	Append(ctx context.Context, m model.Message) (string, error)
	History(ctx context.Context, roomID string, limit int64) ([]model.Message, error)
}

func RoomStreamKey(roomID string) string { return "im:room:" + roomID }

type RedisMessageLog struct {
	rdb    redis.UniversalClient
	maxLen int64
}

func NewRedisMessageLog(rdb redis.UniversalClient, maxLen int64) *RedisMessageLog {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &RedisMessageLog{rdb: rdb, maxLen: maxLen}
}

// Append returns the stream entry id.
func (l *RedisMessageLog) Append(ctx context.Context, m model.Message) (string, error) {
	args := &redis.XAddArgs{
		Stream: RoomStreamKey(m.ChatRoomID),
		MaxLen: l.maxLen,
		Approx: true,
		Values: streamFields(m),
	}
	return l.rdb.XAdd(ctx, args).Result()
}

func (l *RedisMessageLog) History(ctx context.Context, roomID string, limit int64) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := l.rdb.XRevRangeN(ctx, RoomStreamKey(roomID), "+", "-", limit).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(rows))
	for _, x := range rows {
		out = append(out, messageFromStream(roomID, x.Values))
	}
	return out, nil
}

func streamFields(m model.Message) map[string]any {
	return map[string]any{
		"senderId":  m.SenderID,
		"content":   m.Content,
		"messageId": m.MessageID,
		"ts":        strconv.FormatInt(m.Timestamp.UnixMilli(), 10),
	}
}

func messageFromStream(roomID string, v map[string]any) model.Message {
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	m := model.Message{
		ChatRoomID: roomID,
		SenderID:   str("senderId"),
		Content:    str("content"),
		MessageID:  str("messageId"),
	}
	if ms, err := strconv.ParseInt(str("ts"), 10, 64); err == nil {
		m.Timestamp = time.UnixMilli(ms).UTC()
	}
	return m
}

// MemMessageLog keeps history in process; for the memory driver and tests.
type MemMessageLog struct {
	mu     sync.Mutex
	rooms  map[string][]model.Message
	maxLen int
}

func NewMemMessageLog(maxLen int) *MemMessageLog {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &MemMessageLog{rooms: make(map[string][]model.Message), maxLen: maxLen}
}

func (l *MemMessageLog) Append(_ context.Context, m model.Message) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := append(l.rooms[m.ChatRoomID], m)
	if len(msgs) > l.maxLen {
		msgs = msgs[len(msgs)-l.maxLen:]
	}
	l.rooms[m.ChatRoomID] = msgs
	return strconv.Itoa(len(msgs)), nil
}

// Recent returns a copy of the room's history, oldest first.
func (l *MemMessageLog) Recent(roomID string) []model.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Message(nil), l.rooms[roomID]...)
}

func (l *MemMessageLog) History(_ context.Context, roomID string, limit int64) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := l.rooms[roomID]
	n := int64(len(msgs))
	if n > limit {
		n = limit
	}
	out := make([]model.Message, 0, n)
	for i := len(msgs) - 1; i >= 0 && int64(len(out)) < n; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}
