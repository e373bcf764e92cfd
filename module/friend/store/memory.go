package store

import (
	"context"
	"sort"
	"sync"

	"PPChat/module/friend/model"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemStore is a serializable in-process implementation: a transaction holds
// the store lock for its whole duration and rolls back from a snapshot.
type MemStore struct {
	mu            sync.RWMutex
	friendships   map[primitive.ObjectID]model.Friendship
	byPair        map[string]primitive.ObjectID
	notifications map[primitive.ObjectID]model.Notification // friendship id -> notification
}

func NewMemStore() *MemStore {
	return &MemStore{
		friendships:   make(map[primitive.ObjectID]model.Friendship),
		byPair:        make(map[string]primitive.ObjectID),
		notifications: make(map[primitive.ObjectID]model.Notification),
	}
}

func (s *MemStore) EnsureIndexes(context.Context) error { return nil }

func (s *MemStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapF := cloneMap(s.friendships)
	snapP := cloneMap(s.byPair)
	snapN := cloneMap(s.notifications)

	if err := fn(ctx, memTx{s}); err != nil {
		s.friendships, s.byPair, s.notifications = snapF, snapP, snapN
		return err
	}
	return nil
}

func (s *MemStore) FriendshipByPair(_ context.Context, a, b string) (*model.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairLocked(a, b), nil
}

func (s *MemStore) ListFriendships(_ context.Context, q Query) ([]model.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Friendship, 0)
	for _, f := range s.friendships {
		if q.Match(&f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemStore) ListUnreadNotifications(_ context.Context, recipientID string, limit int) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, 0)
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountNotifications is a test hook for the one-notification-per-friendship rule.
func (s *MemStore) CountNotifications(friendshipID primitive.ObjectID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.notifications {
		if v.FriendShipDocID == friendshipID {
			n++
		}
	}
	return n
}

// CountFriendships counts stored records for the unordered pair.
func (s *MemStore) CountFriendships(a, b string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := model.PairKey(a, b)
	n := 0
	for _, f := range s.friendships {
		if f.PairKey == key {
			n++
		}
	}
	return n
}

func (s *MemStore) pairLocked(a, b string) *model.Friendship {
	id, ok := s.byPair[model.PairKey(a, b)]
	if !ok {
		return nil
	}
	f := s.friendships[id]
	return &f
}

type memTx struct{ s *MemStore }

func (t memTx) FriendshipByID(_ context.Context, id primitive.ObjectID) (*model.Friendship, error) {
	f, ok := t.s.friendships[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("friendship not found", "id", id.Hex())
	}
	return &f, nil
}

func (t memTx) FriendshipByPair(_ context.Context, a, b string) (*model.Friendship, error) {
	return t.s.pairLocked(a, b), nil
}

func (t memTx) InsertFriendship(_ context.Context, f *model.Friendship) error {
	if _, ok := t.s.byPair[f.PairKey]; ok {
		return errs.ErrConflict.WrapMsg("friendship already exists")
	}
	if _, ok := t.s.friendships[f.ID]; ok {
		return errs.ErrConflict.WrapMsg("friendship already exists")
	}
	t.s.friendships[f.ID] = *f
	t.s.byPair[f.PairKey] = f.ID
	return nil
}

func (t memTx) UpdateFriendship(_ context.Context, f *model.Friendship, expect model.Status) error {
	cur, ok := t.s.friendships[f.ID]
	if !ok || cur.Status != expect {
		return errs.ErrConflict.WrapMsg("friendship changed concurrently", "id", f.ID.Hex())
	}
	cur.SenderID = f.SenderID
	cur.RecipientID = f.RecipientID
	cur.Status = f.Status
	cur.UpdatedAt = f.UpdatedAt
	t.s.friendships[f.ID] = cur
	return nil
}

func (t memTx) NotificationByFriendship(_ context.Context, friendshipID primitive.ObjectID) (*model.Notification, error) {
	n, ok := t.s.notifications[friendshipID]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (t memTx) UpsertNotification(_ context.Context, n *model.Notification) error {
	t.s.notifications[n.FriendShipDocID] = *n
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
