package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"PPChat/module/chat/model"
	usermodel "PPChat/module/user/model"
	"PPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type friendSet map[string]bool

func (f friendSet) AreFriends(_ context.Context, a, b string) (bool, error) {
	return f[model.RoomID(a, b)], nil
}

type profiles map[string]usermodel.PublicProfile

func (p profiles) PublicProfiles(_ context.Context, ids []string) (map[string]usermodel.PublicProfile, error) {
	out := make(map[string]usermodel.PublicProfile, len(ids))
	for _, id := range ids {
		if v, ok := p[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

var t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newResolver(st Store) *Resolver {
	friends := friendSet{model.RoomID("alice", "bob"): true, model.RoomID("alice", "carol"): true}
	users := profiles{
		"alice": {ID: "alice", Nickname: "Alice"},
		"bob":   {ID: "bob", Nickname: "Bob"},
		"carol": {ID: "carol", Nickname: "Carol"},
	}
	return NewResolver(st, friends, users, func() time.Time { return t0 })
}

func TestGetOrCreateIsOrderIndependent(t *testing.T) {
	r := newResolver(NewMemStore())
	ctx := context.Background()

	a, err := r.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	b, err := r.GetOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice_bob", a.ID)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, []string{"alice", "bob"}, b.Participants)
	assert.Equal(t, t0, b.LastMessageTimestamp)
}

func TestGetOrCreateRequiresFriendship(t *testing.T) {
	r := newResolver(NewMemStore())
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "bob", "carol")
	assert.ErrorIs(t, err, errs.ErrNoPermission)

	_, err = r.GetOrCreate(ctx, "bob", "")
	assert.ErrorIs(t, err, errs.ErrArgs)

	_, err = r.GetOrCreate(ctx, "bob", "bob")
	assert.ErrorIs(t, err, errs.ErrArgs)

	_, err = r.GetOrCreate(ctx, "", "bob")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}

func TestGetOrCreateConcurrentConverges(t *testing.T) {
	st := NewMemStore()
	r := newResolver(st)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor, friend := "alice", "bob"
			if i%2 == 1 {
				actor, friend = friend, actor
			}
			room, err := r.GetOrCreate(ctx, actor, friend)
			if assert.NoError(t, err) {
				ids[i] = room.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "alice_bob", id)
	}
	rooms, err := st.ListByParticipant(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestListRoomsNewestFirstWithFriend(t *testing.T) {
	r := newResolver(NewMemStore())
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = r.GetOrCreate(ctx, "carol", "alice")
	require.NoError(t, err)

	require.NoError(t, r.RecordMessage(ctx, model.Message{
		ChatRoomID: "alice_carol", SenderID: "carol", Content: "hey", MessageID: "m1", Timestamp: t0.Add(time.Minute),
	}))

	views, err := r.ListRooms(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "alice_carol", views[0].ID)
	assert.Equal(t, "hey", views[0].LastMessageContent)
	require.NotNil(t, views[0].FriendUser)
	assert.Equal(t, "Carol", views[0].FriendUser.Nickname)
	require.NotNil(t, views[1].FriendUser)
	assert.Equal(t, "bob", views[1].FriendUser.ID)
}

func TestRecordMessageIgnoresOlderPreview(t *testing.T) {
	st := NewMemStore()
	r := newResolver(st)
	ctx := context.Background()
	_, err := r.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	newer := model.Message{ChatRoomID: "alice_bob", Content: "second", MessageID: "m2", Timestamp: t0.Add(2 * time.Minute)}
	older := model.Message{ChatRoomID: "alice_bob", Content: "first", MessageID: "m1", Timestamp: t0.Add(time.Minute)}
	require.NoError(t, r.RecordMessage(ctx, newer))
	require.NoError(t, r.RecordMessage(ctx, older))

	room, err := st.FindByID(ctx, "alice_bob")
	require.NoError(t, err)
	assert.Equal(t, "second", room.LastMessageContent)
	assert.Equal(t, "m2", room.LastMessageID)
}

func TestRoomChecksParticipant(t *testing.T) {
	r := newResolver(NewMemStore())
	ctx := context.Background()
	_, err := r.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = r.Room(ctx, "alice", "alice_bob")
	assert.NoError(t, err)
	_, err = r.Room(ctx, "carol", "alice_bob")
	assert.ErrorIs(t, err, errs.ErrNoPermission)
	_, err = r.Room(ctx, "alice", "alice_carol")
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)
	_, err = r.Room(ctx, "alice", "garbage")
	assert.ErrorIs(t, err, errs.ErrArgs)
}
