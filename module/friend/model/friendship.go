package model

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusBlocked   Status = "blocked"
	StatusRemoved   Status = "removed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled, StatusBlocked, StatusRemoved:
		return true
	}
	return false
}

// Reopenable 终态：可以被新的好友请求原地复用
func (s Status) Reopenable() bool {
	return s == StatusCancelled || s == StatusRejected || s == StatusRemoved
}

// Friendship 一对用户之间唯一的关系记录；sender/recipient 保留发起方向
type Friendship struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	SenderID    string             `bson:"senderId" json:"senderId"`
	RecipientID string             `bson:"recipientId" json:"recipientId"`
	Status      Status             `bson:"status" json:"status"`
	PairKey     string             `bson:"pairKey" json:"-"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (Friendship) GetTableName() string { return "friendships" }

func (f *Friendship) Involves(userID string) bool {
	return f.SenderID == userID || f.RecipientID == userID
}

// Counterpart returns the other participant, or "" when userID is not one.
func (f *Friendship) Counterpart(userID string) string {
	switch userID {
	case f.SenderID:
		return f.RecipientID
	case f.RecipientID:
		return f.SenderID
	}
	return ""
}

// PairKey is the order-independent key of a user pair: sorted ids joined by "_".
func PairKey(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return strings.Join(p, "_")
}
