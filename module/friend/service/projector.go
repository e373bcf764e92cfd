package service

import (
	"time"

	"PPChat/module/friend/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Kind string

const (
	KindRequest Kind = "request"
	KindCancel  Kind = "cancel"
	KindAccept  Kind = "accept"
	KindReject  Kind = "reject"
	KindRemove  Kind = "remove"
	KindBlock   Kind = "block"
)

// Transition is a committed change of one Friendship.
type Transition struct {
	Kind       Kind
	Friendship model.Friendship // state after the change
	Actor      string
	At         time.Time
}

type projection struct {
	typ     model.NotificationType
	isRead  bool
	message string
}

var projections = map[Kind]projection{
	KindRequest: {model.TypeFriendRequest, false, "sent you a friend request"},
	KindCancel:  {model.TypeFriendCancelled, true, "cancelled the friend request"},
	KindAccept:  {model.TypeFriendAccepted, true, "accepted your friend request"},
	KindReject:  {model.TypeFriendRejected, true, "declined your friend request"},
	KindRemove:  {model.TypeFriendRemoved, true, "removed you from friends"},
	KindBlock:   {model.TypeFriendBlocked, false, "blocked you"},
}

// ProjectNotification derives the single current notification of a
// friendship from the prior one and the transition just committed.
//
// The notification always reads "actor did X to you": the actor is the sender
// and the counterpart the recipient. For request and cancel that matches the
// friendship roles; for accept and reject it flips them, so the original
// requester is the one who gets told.
func ProjectNotification(prior *model.Notification, t Transition) model.Notification {
	p, ok := projections[t.Kind]
	if !ok {
		panic("unknown transition kind: " + string(t.Kind))
	}
	f := t.Friendship
	recipient := f.Counterpart(t.Actor)

	n := model.Notification{
		ID:              primitive.NewObjectID(),
		RecipientID:     recipient,
		SenderID:        t.Actor,
		OtherID:         t.Actor,
		Type:            p.typ,
		Status:          f.Status,
		Message:         p.message,
		IsRead:          p.isRead,
		FriendShipDocID: f.ID,
		CreatedAt:       t.At,
		UpdatedAt:       t.At,
	}
	if prior != nil {
		n.ID = prior.ID
		n.CreatedAt = prior.CreatedAt
	}
	return n
}
