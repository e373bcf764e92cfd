// Package room resolves the 1:1 chat room of two friends.
package room

import (
	"context"
	"strings"
	"time"

	"PPChat/logger"
	"PPChat/module/chat/model"
	usermodel "PPChat/module/user/model"
	"PPChat/tools/errs"
	"PPChat/tools/safe"

	"go.uber.org/zap"
)

var (
	ErrNotFriends     = errs.NewCodeError(errs.NoPermissionError, "not friends, cannot open a chat room")
	ErrNotParticipant = errs.NewCodeError(errs.NoPermissionError, "not a participant of this room")
)

// FriendChecker answers whether two users have an accepted friendship.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

type ProfileResolver interface {
	PublicProfiles(ctx context.Context, ids []string) (map[string]usermodel.PublicProfile, error)
}

// RoomView is a room as listed for one participant.
type RoomView struct {
	model.ChatRoom
	FriendUser *usermodel.PublicProfile `json:"friendUser,omitempty"`
}

type Resolver struct {
	store   Store
	friends FriendChecker
	users   ProfileResolver
	now     func() time.Time
}

func NewResolver(st Store, friends FriendChecker, users ProfileResolver, now func() time.Time) *Resolver {
	safe.MustNotNil(st, "room store")
	safe.MustNotNil(friends, "friend checker")
	safe.MustNotNil(users, "profile resolver")
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: st, friends: friends, users: users, now: now}
}

// GetOrCreate returns the room of actor and friendID, creating it on first
// use. Concurrent callers converge on the same document.
func (r *Resolver) GetOrCreate(ctx context.Context, actor, friendID string) (*model.ChatRoom, error) {
	friendID = strings.TrimSpace(friendID)
	if actor == "" {
		return nil, errs.ErrUnauthenticated.Wrap()
	}
	if friendID == "" {
		return nil, errs.ErrArgs.WrapMsg("friendId is required")
	}
	if friendID == actor {
		return nil, errs.ErrArgs.WrapMsg("cannot chat with yourself")
	}
	if strings.Contains(actor, "_") || strings.Contains(friendID, "_") {
		return nil, errs.ErrArgs.WrapMsg("user id must not contain '_'")
	}
	ok, err := r.friends.AreFriends(ctx, actor, friendID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFriends.Wrap()
	}

	now := r.now()
	room := &model.ChatRoom{
		ID:                   model.RoomID(actor, friendID),
		Participants:         model.Participants(actor, friendID),
		LastMessageTimestamp: now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	created, err := r.store.Upsert(ctx, room)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("[Chat] room created", zap.String("room", room.ID))
		return room, nil
	}
	return r.store.FindByID(ctx, room.ID)
}

// Room loads a room and checks the caller belongs to it.
func (r *Resolver) Room(ctx context.Context, userID, roomID string) (*model.ChatRoom, error) {
	if _, _, ok := model.SplitRoomID(roomID); !ok {
		return nil, errs.ErrArgs.WrapMsg("malformed roomId", "roomId", roomID)
	}
	room, err := r.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, ErrNotParticipant.Wrap()
	}
	return room, nil
}

// ListRooms returns the caller's rooms, most recent activity first.
func (r *Resolver) ListRooms(ctx context.Context, userID string) ([]RoomView, error) {
	rooms, err := r.store.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rooms))
	for i := range rooms {
		if other := rooms[i].Counterpart(userID); other != "" {
			ids = append(ids, other)
		}
	}
	profiles, err := r.users.PublicProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RoomView, 0, len(rooms))
	for i := range rooms {
		v := RoomView{ChatRoom: rooms[i]}
		if p, ok := profiles[rooms[i].Counterpart(userID)]; ok {
			v.FriendUser = &p
		}
		out = append(out, v)
	}
	return out, nil
}

// RecordMessage updates the room's last-message preview.
func (r *Resolver) RecordMessage(ctx context.Context, m model.Message) error {
	return r.store.TouchLastMessage(ctx, m.ChatRoomID, LastMessage{
		ID:        m.MessageID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	})
}
