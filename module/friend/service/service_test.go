package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"PPChat/module/friend/model"
	"PPChat/module/friend/store"
	usermodel "PPChat/module/user/model"
	userservice "PPChat/module/user/service"
	userstore "PPChat/module/user/store"
	"PPChat/tools/errs"
	"PPChat/tools/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type push struct {
	userID  string
	event   string
	payload any
}

// fakeDispatcher records pushes; users not in online are treated as offline.
type fakeDispatcher struct {
	mu     sync.Mutex
	online map[string]bool
	pushes []push
}

func (d *fakeDispatcher) Dispatch(userID, event string, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.online[userID] {
		return false
	}
	d.pushes = append(d.pushes, push{userID, event, payload})
	return true
}

func (d *fakeDispatcher) last(t *testing.T) push {
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.pushes)
	return d.pushes[len(d.pushes)-1]
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pushes)
}

type chanPublisher struct{ ch chan FriendEvent }

func (p *chanPublisher) Publish(_ context.Context, _ string, payload any) error {
	p.ch <- payload.(FriendEvent)
	return nil
}

type immediate struct{}

func (immediate) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type fixture struct {
	svc   *Service
	store *store.MemStore
	disp  *fakeDispatcher
	clock *time.Time
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()
	us := userservice.NewService(userstore.NewMemStore(), userservice.Options{
		Retry: retry.Policy{MaxAttempts: 2, Clock: immediate{}},
	})
	for _, uid := range []string{"alice", "bob", "carol"} {
		_, err := us.Signup(ctx, uid, userservice.SignupInput{Nickname: uid, Gender: usermodel.GenderOther})
		require.NoError(t, err)
	}

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	f := &fixture{
		store: store.NewMemStore(),
		disp:  &fakeDispatcher{online: map[string]bool{"alice": true, "bob": true}},
		clock: &now,
	}
	o := Options{
		Dispatcher: f.disp,
		Now: func() time.Time {
			*f.clock = f.clock.Add(time.Second)
			return *f.clock
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.svc = NewService(f.store, us, o)
	return f
}

func TestSendRequestCreatesPendingAndPushes(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.SendRequest(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Friendship.Status)
	assert.Equal(t, "alice", res.Friendship.SenderID)
	assert.Equal(t, "bob", res.Friendship.RecipientID)

	assert.Equal(t, model.TypeFriendRequest, res.Notification.Type)
	assert.Equal(t, "bob", res.Notification.RecipientID)
	assert.False(t, res.Notification.IsRead)

	p := fx.disp.last(t)
	assert.Equal(t, "bob", p.userID)
	assert.Equal(t, string(model.TypeFriendRequest), p.event)
	view, ok := p.payload.(NotificationView)
	require.True(t, ok)
	require.NotNil(t, view.Sender)
	assert.Equal(t, "alice", view.Sender.Nickname)
}

func TestAcceptFlipsNotificationTowardRequester(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	res, err := fx.svc.Accept(ctx, "bob", req.Friendship.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, res.Friendship.Status)
	assert.Equal(t, "alice", res.Friendship.SenderID, "accept keeps the record's direction")

	assert.Equal(t, req.Notification.ID, res.Notification.ID)
	assert.Equal(t, "alice", res.Notification.RecipientID)
	assert.Equal(t, "bob", res.Notification.SenderID)
	assert.True(t, res.Notification.IsRead)

	p := fx.disp.last(t)
	assert.Equal(t, "alice", p.userID)
	assert.Equal(t, string(model.TypeFriendAccepted), p.event)

	ok, err := fx.svc.AreFriends(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRespondChecksRoleBeforeStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	id := req.Friendship.ID.Hex()

	_, err = fx.svc.Accept(ctx, "alice", id)
	assert.ErrorIs(t, err, errs.ErrNoPermission)
	_, err = fx.svc.Reject(ctx, "carol", id)
	assert.ErrorIs(t, err, errs.ErrNoPermission)
	_, err = fx.svc.Cancel(ctx, "bob", id)
	assert.ErrorIs(t, err, errs.ErrNoPermission)

	res, err := fx.svc.Reject(ctx, "bob", id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, res.Friendship.Status)

	// 状态已不是 pending
	_, err = fx.svc.Accept(ctx, "bob", id)
	assert.ErrorIs(t, err, errs.ErrConflict)
	_, err = fx.svc.Cancel(ctx, "alice", id)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestCancelBySender(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	res, err := fx.svc.Cancel(ctx, "alice", req.Friendship.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Friendship.Status)
	assert.Equal(t, model.TypeFriendCancelled, res.Notification.Type)
	assert.Equal(t, "bob", res.Notification.RecipientID)
}

func TestRemoveRequiresAccepted(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	before := fx.disp.count()

	_, err = fx.svc.Remove(ctx, "alice", req.Friendship.ID.Hex())
	require.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, before, fx.disp.count(), "a failed transition pushes nothing")

	unread, err := fx.svc.ListNotifications(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, model.TypeFriendRequest, unread[0].Type, "failed transition leaves the notification alone")

	_, err = fx.svc.Accept(ctx, "bob", req.Friendship.ID.Hex())
	require.NoError(t, err)
	_, err = fx.svc.Remove(ctx, "carol", req.Friendship.ID.Hex())
	assert.ErrorIs(t, err, errs.ErrNoPermission)

	res, err := fx.svc.Remove(ctx, "bob", req.Friendship.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, model.StatusRemoved, res.Friendship.Status)
	assert.Equal(t, "alice", res.Notification.RecipientID)
}

func TestSendRequestConflicts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = fx.svc.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrRequestPending)
	_, err = fx.svc.SendRequest(ctx, "bob", "alice")
	assert.ErrorIs(t, err, errs.ErrConflict, "reverse direction hits the same pair")

	_, err = fx.svc.Accept(ctx, "bob", req.Friendship.ID.Hex())
	require.NoError(t, err)
	_, err = fx.svc.SendRequest(ctx, "bob", "alice")
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, "already friends", errs.PublicMessage(err))
}

func TestSendRequestValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.SendRequest(ctx, "alice", "alice")
	assert.ErrorIs(t, err, errs.ErrArgs)

	_, err = fx.svc.SendRequest(ctx, "alice", " ")
	assert.ErrorIs(t, err, errs.ErrArgs)

	_, err = fx.svc.SendRequest(ctx, "", "bob")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = fx.svc.SendRequest(ctx, "alice", "nobody")
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	_, err = fx.svc.Accept(ctx, "bob", "not-an-id")
	assert.ErrorIs(t, err, errs.ErrArgs)
}

func TestReactivationReusesRecord(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = fx.svc.Reject(ctx, "bob", first.Friendship.ID.Hex())
	require.NoError(t, err)

	// 被拒绝后由对方重新发起
	again, err := fx.svc.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.Friendship.ID, again.Friendship.ID)
	assert.Equal(t, "bob", again.Friendship.SenderID)
	assert.Equal(t, "alice", again.Friendship.RecipientID)
	assert.Equal(t, model.StatusPending, again.Friendship.Status)
	assert.Equal(t, first.Friendship.CreatedAt, again.Friendship.CreatedAt)

	assert.Equal(t, first.Notification.ID, again.Notification.ID)
	assert.Equal(t, "alice", again.Notification.RecipientID)
	assert.False(t, again.Notification.IsRead)

	assert.Equal(t, 1, fx.store.CountFriendships("alice", "bob"))
	assert.Equal(t, 1, fx.store.CountNotifications(first.Friendship.ID))
}

func TestBlockOverridesAccepted(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = fx.svc.Accept(ctx, "bob", req.Friendship.ID.Hex())
	require.NoError(t, err)

	res, err := fx.svc.Block(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, req.Friendship.ID, res.Friendship.ID)
	assert.Equal(t, model.StatusBlocked, res.Friendship.Status)
	assert.Equal(t, "bob", res.Friendship.SenderID)
	assert.Equal(t, model.TypeFriendBlocked, res.Notification.Type)
	assert.Equal(t, "alice", res.Notification.RecipientID)

	ok, err := fx.svc.AreFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fx.svc.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrBlocked)

	// 没有任何记录时也可以直接拉黑
	fresh, err := fx.svc.Block(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, fresh.Friendship.Status)
}

func TestConcurrentRequestsBothDirections(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		oks    int
		failed []error
	)
	for i := 0; i < 8; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.SendRequest(ctx, from, to)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return
			}
			oks++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	assert.Len(t, failed, 7)
	assert.Equal(t, 1, fx.store.CountFriendships("alice", "bob"))
}

func TestOneNotificationPerFriendship(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	id := req.Friendship.ID.Hex()
	_, err = fx.svc.Accept(ctx, "bob", id)
	require.NoError(t, err)
	_, err = fx.svc.Remove(ctx, "alice", id)
	require.NoError(t, err)
	_, err = fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, 1, fx.store.CountNotifications(req.Friendship.ID))
}

func TestOfflineRecipientStillCommits(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// carol 不在线
	res, err := fx.svc.SendRequest(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, 0, fx.disp.count())

	unread, err := fx.svc.ListNotifications(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, res.Notification.ID, unread[0].ID)
	require.NotNil(t, unread[0].Sender)
	assert.Equal(t, "alice", unread[0].Sender.ID)
}

func TestPublishesEventAfterCommit(t *testing.T) {
	pub := &chanPublisher{ch: make(chan FriendEvent, 1)}
	fx := newFixture(t, func(o *Options) { o.Publisher = pub })

	res, err := fx.svc.SendRequest(context.Background(), "alice", "bob")
	require.NoError(t, err)

	select {
	case evt := <-pub.ch:
		assert.Equal(t, res.Friendship.ID.Hex(), evt.FriendshipID)
		assert.Equal(t, string(model.TypeFriendRequest), evt.Type)
		assert.Equal(t, "alice", evt.ActorID)
		assert.Equal(t, "bob", evt.TargetID)
		assert.NotEmpty(t, evt.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
}

func TestListings(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	ab, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = fx.svc.SendRequest(ctx, "carol", "alice")
	require.NoError(t, err)

	sent, err := fx.svc.ListRequests(ctx, "alice", "sent", "")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "bob", sent[0].FriendID)
	require.NotNil(t, sent[0].Friend)

	received, err := fx.svc.ListRequests(ctx, "alice", "received", "pending")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "carol", received[0].FriendID)

	_, err = fx.svc.ListRequests(ctx, "alice", "both", "")
	assert.ErrorIs(t, err, errs.ErrArgs)
	_, err = fx.svc.ListRequests(ctx, "alice", "sent", "maybe")
	assert.ErrorIs(t, err, errs.ErrArgs)

	_, err = fx.svc.Accept(ctx, "bob", ab.Friendship.ID.Hex())
	require.NoError(t, err)
	friends, err := fx.svc.ListFriendShips(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "alice", friends[0].FriendID)
	assert.Equal(t, model.StatusAccepted, friends[0].Status)
}

func TestPairIDsWithUnderscoreRejected(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// "bob_carol"+"alice" and "alice_bob"+"carol" would share one pair key
	_, err := fx.svc.SendRequest(ctx, "bob_carol", "alice")
	assert.ErrorIs(t, err, errs.ErrArgs)
	_, err = fx.svc.Block(ctx, "alice_bob", "carol")
	assert.ErrorIs(t, err, errs.ErrArgs)
	_, err = fx.svc.Block(ctx, "carol", "alice_bob")
	assert.ErrorIs(t, err, errs.ErrArgs)

	for _, uid := range []string{"alice", "carol"} {
		rows, err := fx.store.ListFriendships(ctx, store.Query{UserID: uid, Role: store.RoleAny})
		require.NoError(t, err)
		assert.Empty(t, rows, uid)
	}
	assert.Zero(t, fx.disp.count())
}

func TestListRequestsWithoutType(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	ab, err := fx.svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = fx.svc.SendRequest(ctx, "carol", "alice")
	require.NoError(t, err)
	_, err = fx.svc.Accept(ctx, "bob", ab.Friendship.ID.Hex())
	require.NoError(t, err)

	all, err := fx.svc.ListRequests(ctx, "alice", "", "")
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, v := range all {
		ids = append(ids, v.FriendID)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, ids)

	accepted, err := fx.svc.ListRequests(ctx, "alice", "", "accepted")
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "bob", accepted[0].FriendID)

	pending, err := fx.svc.ListRequests(ctx, "alice", "", "pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "carol", pending[0].FriendID)

	// 有 type 时 status 仍默认 pending
	sent, err := fx.svc.ListRequests(ctx, "alice", "sent", "")
	require.NoError(t, err)
	assert.Empty(t, sent)

	_, err = fx.svc.ListRequests(ctx, "alice", "", "maybe")
	assert.ErrorIs(t, err, errs.ErrArgs)
}

// ctxUsers fails profile lookups once the caller's context is done.
type ctxUsers struct{ UserDirectory }

func (u ctxUsers) PublicProfiles(ctx context.Context, ids []string) (map[string]usermodel.PublicProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return u.UserDirectory.PublicProfiles(ctx, ids)
}

func TestPushResolvesSenderAfterRequestCancelled(t *testing.T) {
	fx := newFixture(t)
	fx.svc.users = ctxUsers{fx.svc.users}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fx.svc.dispatch(ctx, &Result{Notification: model.Notification{
		Type:        model.TypeFriendRequest,
		SenderID:    "alice",
		RecipientID: "bob",
	}})

	p := fx.disp.last(t)
	assert.Equal(t, "bob", p.userID)
	view, ok := p.payload.(NotificationView)
	require.True(t, ok)
	require.NotNil(t, view.Sender)
	assert.Equal(t, "alice", view.Sender.Nickname)
}
