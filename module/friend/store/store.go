package store

import (
	"context"

	"PPChat/module/friend/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tx is the read-modify-write surface available inside a transaction.
// Methods must be called with the ctx handed to the RunTx callback.
type Tx interface {
	// FriendshipByID reports errs.ErrRecordNotFound when absent.
	FriendshipByID(ctx context.Context, id primitive.ObjectID) (*model.Friendship, error)
	// FriendshipByPair looks the pair up in either direction; nil, nil when absent.
	FriendshipByPair(ctx context.Context, a, b string) (*model.Friendship, error)
	// InsertFriendship reports errs.ErrConflict when the pair already has a record.
	InsertFriendship(ctx context.Context, f *model.Friendship) error
	// UpdateFriendship writes f only if the stored status still equals expect,
	// otherwise errs.ErrConflict.
	UpdateFriendship(ctx context.Context, f *model.Friendship, expect model.Status) error
	// NotificationByFriendship returns nil, nil when no notification exists yet.
	NotificationByFriendship(ctx context.Context, friendshipID primitive.ObjectID) (*model.Notification, error)
	// UpsertNotification replaces the notification keyed by n.FriendShipDocID.
	UpsertNotification(ctx context.Context, n *model.Notification) error
}

type Role int

const (
	RoleAny Role = iota
	RoleSender
	RoleRecipient
)

// Query filters the friendships of one user.
type Query struct {
	UserID   string
	Role     Role
	Statuses []model.Status
}

func (q Query) Match(f *model.Friendship) bool {
	switch q.Role {
	case RoleSender:
		if f.SenderID != q.UserID {
			return false
		}
	case RoleRecipient:
		if f.RecipientID != q.UserID {
			return false
		}
	default:
		if !f.Involves(q.UserID) {
			return false
		}
	}
	if len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if f.Status == s {
			return true
		}
	}
	return false
}

type Store interface {
	// RunTx commits when fn returns nil and rolls everything back otherwise.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	FriendshipByPair(ctx context.Context, a, b string) (*model.Friendship, error)
	// ListFriendships returns matches most recently updated first.
	ListFriendships(ctx context.Context, q Query) ([]model.Friendship, error)
	// ListUnreadNotifications returns the recipient's unread notifications, newest first.
	ListUnreadNotifications(ctx context.Context, recipientID string, limit int) ([]model.Notification, error)
	EnsureIndexes(ctx context.Context) error
}
