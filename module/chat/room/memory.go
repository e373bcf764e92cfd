package room

import (
	"context"
	"sort"
	"sync"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"
)

type MemStore struct {
	mu    sync.RWMutex
	rooms map[string]model.ChatRoom
}

func NewMemStore() *MemStore {
	return &MemStore{rooms: make(map[string]model.ChatRoom)}
}

func (s *MemStore) EnsureIndexes(context.Context) error { return nil }

func (s *MemStore) Upsert(_ context.Context, r *model.ChatRoom) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.ID]; ok {
		return false, nil
	}
	cp := *r
	cp.Participants = append([]string(nil), r.Participants...)
	s.rooms[r.ID] = cp
	return true, nil
}

func (s *MemStore) FindByID(_ context.Context, id string) (*model.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("chat room not found", "id", id)
	}
	return &r, nil
}

func (s *MemStore) ListByParticipant(_ context.Context, userID string) ([]model.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ChatRoom, 0)
	for _, r := range s.rooms {
		if r.HasParticipant(userID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTimestamp.After(out[j].LastMessageTimestamp)
	})
	return out, nil
}

func (s *MemStore) TouchLastMessage(_ context.Context, roomID string, m LastMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok || m.Timestamp.Before(r.LastMessageTimestamp) {
		return nil
	}
	r.LastMessageID = m.ID
	r.LastMessageContent = m.Content
	r.LastMessageTimestamp = m.Timestamp
	r.UpdatedAt = m.Timestamp
	s.rooms[roomID] = r
	return nil
}
