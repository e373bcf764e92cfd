package store

import (
	"context"
	"sync"
	"time"

	"PPChat/module/user/model"
	"PPChat/tools/errs"
)

// MemStore keeps users in process memory; used by the memory storage driver and tests.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]model.User)}
}

func (s *MemStore) EnsureIndexes(context.Context) error { return nil }

func (s *MemStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return errs.ErrConflict.WrapMsg("user already exists", "id", u.ID)
	}
	if u.Email != "" {
		for _, other := range s.users {
			if other.Email == u.Email {
				return errs.ErrConflict.WrapMsg("email already registered")
			}
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found", "id", id)
	}
	return &u, nil
}

func (s *MemStore) Update(_ context.Context, id string, upd model.ProfileUpdate, now time.Time) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found", "id", id)
	}
	upd.Apply(&u)
	u.UpdatedAt = now
	s.users[id] = u
	return &u, nil
}

func (s *MemStore) PublicProfiles(_ context.Context, ids []string) (map[string]model.PublicProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.PublicProfile, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Public()
		}
	}
	return out, nil
}

func (s *MemStore) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("user not found", "id", id)
	}
	u.IsOnline = online
	u.LastActive = at
	s.users[id] = u
	return nil
}
