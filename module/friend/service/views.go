package service

import (
	"context"
	"strings"
	"time"

	"PPChat/module/friend/model"
	"PPChat/module/friend/store"
	usermodel "PPChat/module/user/model"
	"PPChat/tools/errs"

	"github.com/google/uuid"
)

const defaultNotificationLimit = 100

// NotificationView is a notification with the sender's public profile inline.
type NotificationView struct {
	model.Notification
	Sender *usermodel.PublicProfile `json:"sender,omitempty"`
}

// FriendView is one relationship seen from the caller's side.
type FriendView struct {
	FriendShipDocID string                   `json:"friendShipDocId"`
	Status          model.Status             `json:"status"`
	SenderID        string                   `json:"senderId"`
	RecipientID     string                   `json:"recipientId"`
	FriendID        string                   `json:"friendId"`
	Friend          *usermodel.PublicProfile `json:"friend,omitempty"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// FriendEvent is what goes on the event bus after a commit.
type FriendEvent struct {
	EventID        string    `json:"eventId"`
	Type           string    `json:"type"`
	FriendshipID   string    `json:"friendshipId"`
	NotificationID string    `json:"notificationId"`
	Status         string    `json:"status"`
	ActorID        string    `json:"actorId"`
	TargetID       string    `json:"targetId"`
	At             time.Time `json:"at"`
}

// EventKey lets the bus suppress duplicates of the same event.
func (e FriendEvent) EventKey() string { return e.EventID }

func newFriendEvent(res *Result) FriendEvent {
	n := res.Notification
	return FriendEvent{
		EventID:        uuid.NewString(),
		Type:           string(n.Type),
		FriendshipID:   res.Friendship.ID.Hex(),
		NotificationID: n.ID.Hex(),
		Status:         string(res.Friendship.Status),
		ActorID:        n.SenderID,
		TargetID:       n.RecipientID,
		At:             n.UpdatedAt,
	}
}

// ListFriendShips returns accepted and blocked relationships of uid.
func (s *Service) ListFriendShips(ctx context.Context, uid string) ([]FriendView, error) {
	rows, err := s.store.ListFriendships(ctx, store.Query{
		UserID:   uid,
		Statuses: []model.Status{model.StatusAccepted, model.StatusBlocked},
	})
	if err != nil {
		return nil, err
	}
	return s.friendViews(ctx, uid, rows)
}

// ListRequests serves GET /friends. typ is "sent", "received" or empty for
// both directions. With a type, status defaults to pending; without one, an
// empty status lists every relationship of uid.
func (s *Service) ListRequests(ctx context.Context, uid, typ, status string) ([]FriendView, error) {
	q := store.Query{UserID: uid}
	typ = strings.ToLower(strings.TrimSpace(typ))
	switch typ {
	case "":
		q.Role = store.RoleAny
	case "sent":
		q.Role = store.RoleSender
	case "received":
		q.Role = store.RoleRecipient
	default:
		return nil, errs.ErrArgs.WrapMsg("type must be sent or received", "type", typ)
	}
	st := model.Status(strings.ToLower(strings.TrimSpace(status)))
	if st == "" && typ != "" {
		st = model.StatusPending
	}
	if st != "" {
		if !st.Valid() {
			return nil, errs.ErrArgs.WrapMsg("unknown status", "status", status)
		}
		q.Statuses = []model.Status{st}
	}

	rows, err := s.store.ListFriendships(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.friendViews(ctx, uid, rows)
}

// ListNotifications returns uid's unread notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, uid string) ([]NotificationView, error) {
	rows, err := s.store.ListUnreadNotifications(ctx, uid, defaultNotificationLimit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, n := range rows {
		ids = append(ids, n.SenderID)
	}
	profiles, err := s.users.PublicProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]NotificationView, 0, len(rows))
	for _, n := range rows {
		v := NotificationView{Notification: n}
		if p, ok := profiles[n.SenderID]; ok {
			v.Sender = &p
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) friendViews(ctx context.Context, uid string, rows []model.Friendship) ([]FriendView, error) {
	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].Counterpart(uid))
	}
	profiles, err := s.users.PublicProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]FriendView, 0, len(rows))
	for i := range rows {
		f := &rows[i]
		other := f.Counterpart(uid)
		v := FriendView{
			FriendShipDocID: f.ID.Hex(),
			Status:          f.Status,
			SenderID:        f.SenderID,
			RecipientID:     f.RecipientID,
			FriendID:        other,
			UpdatedAt:       f.UpdatedAt,
		}
		if p, ok := profiles[other]; ok {
			v.Friend = &p
		}
		out = append(out, v)
	}
	return out, nil
}
