package room

import (
	"context"
	"time"

	"PPChat/module/chat/model"
)

// Store persists chat rooms. Upsert must be atomic: concurrent calls for
// the same id leave exactly one document and report created to at most one.
type Store interface {
	Upsert(ctx context.Context, r *model.ChatRoom) (created bool, err error)
	FindByID(ctx context.Context, id string) (*model.ChatRoom, error)
	ListByParticipant(ctx context.Context, userID string) ([]model.ChatRoom, error)
	TouchLastMessage(ctx context.Context, roomID string, msg LastMessage) error
	EnsureIndexes(ctx context.Context) error
}

// LastMessage is the denormalized preview kept on the room.
type LastMessage struct {
	ID        string
	Content   string
	Timestamp time.Time
}
