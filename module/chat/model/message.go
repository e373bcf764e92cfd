package model

import "time"

// Message 广播用的消息体；messageId 由客户端生成，只用于 ack 关联，不做去重
type Message struct {
	ChatRoomID string    `bson:"chatRoomId" json:"chatRoomId"`
	SenderID   string    `bson:"senderId" json:"senderId"`
	Content    string    `bson:"content" json:"content"`
	MessageID  string    `bson:"messageId" json:"messageId"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}
