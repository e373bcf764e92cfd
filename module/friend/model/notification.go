package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	TypeFriendRequest   NotificationType = "friend_request"
	TypeFriendCancelled NotificationType = "friend_cancelled"
	TypeFriendAccepted  NotificationType = "friend_accepted"
	TypeFriendRejected  NotificationType = "friend_rejected"
	TypeFriendRemoved   NotificationType = "friend_removed"
	TypeFriendBlocked   NotificationType = "friend_blocked"
	TypeChatMessage     NotificationType = "chat_message"
	TypeGroupInvite     NotificationType = "group_invite"
)

// Notification 每条 Friendship 至多一条，按 friendShipDocId upsert，只反映最近一次状态变化
type Notification struct {
	ID              primitive.ObjectID `bson:"_id" json:"_id"`
	RecipientID     string             `bson:"recipientId" json:"recipientId"`
	SenderID        string             `bson:"senderId" json:"senderId"`
	OtherID         string             `bson:"otherId" json:"otherId"`
	Type            NotificationType   `bson:"type" json:"type"`
	Status          Status             `bson:"status" json:"status"`
	Message         string             `bson:"message" json:"message"`
	IsRead          bool               `bson:"isRead" json:"isRead"`
	FriendShipDocID primitive.ObjectID `bson:"friendShipDocId" json:"friendShipDocId"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (Notification) GetTableName() string { return "notifications" }
