package friend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PPChat/middleware"
	"PPChat/module/friend/service"
	"PPChat/module/friend/store"
	usermodel "PPChat/module/user/model"
	userservice "PPChat/module/user/service"
	userstore "PPChat/module/user/store"
	"PPChat/tools/errs"
	"PPChat/tools/retry"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokens struct{}

// Verify treats "t-<uid>" as a valid token for uid.
func (tokens) Verify(_ context.Context, token string) (string, error) {
	if len(token) > 2 && token[:2] == "t-" {
		return token[2:], nil
	}
	return "", errs.ErrUnauthenticated.Wrap()
}

type noWait struct{}

func (noWait) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	us := userservice.NewService(userstore.NewMemStore(), userservice.Options{
		Retry: retry.Policy{MaxAttempts: 1, Clock: noWait{}},
	})
	for _, uid := range []string{"alice", "bob"} {
		_, err := us.Signup(ctx, uid, userservice.SignupInput{Nickname: uid, Gender: usermodel.GenderOther})
		require.NoError(t, err)
	}
	svc := service.NewService(store.NewMemStore(), us, service.Options{})

	e := gin.New()
	NewHandler(svc).Register(middleware.NewRouter(e, tokens{}))
	return e
}

func call(t *testing.T, e *gin.Engine, method, path, uid string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer t-"+uid)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestAddAcceptFlow(t *testing.T) {
	e := newEngine(t)

	code, env := call(t, e, http.MethodPost, "/friends/add", "alice", map[string]string{"recipientId": "bob"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, "friend request sent", env.Msg)
	var tr TransitionResp
	require.NoError(t, json.Unmarshal(env.Data, &tr))
	assert.Equal(t, "pending", string(tr.Status))
	assert.Equal(t, "bob", tr.Notification.RecipientID)

	code, env = call(t, e, http.MethodGet, "/friends?type=received", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var views []service.FriendView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "alice", views[0].FriendID)

	code, env = call(t, e, http.MethodGet, "/notifications", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var notes []service.NotificationView
	require.NoError(t, json.Unmarshal(env.Data, &notes))
	require.Len(t, notes, 1)

	code, _ = call(t, e, http.MethodPost, "/friends/accept", "bob", map[string]string{"friendShipDocId": tr.FriendShipDocID})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, e, http.MethodGet, "/friendShip", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "accepted", string(views[0].Status))

	// accepting twice is a state conflict
	code, env = call(t, e, http.MethodPost, "/friends/accept", "bob", map[string]string{"friendShipDocId": tr.FriendShipDocID})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, http.StatusConflict, env.Code)
}

func TestErrorStatuses(t *testing.T) {
	e := newEngine(t)

	code, _ := call(t, e, http.MethodPost, "/friends/add", "", map[string]string{"recipientId": "bob"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, e, http.MethodPost, "/friends/add", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, e, http.MethodPost, "/friends/add", "alice", map[string]string{"recipientId": "alice"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, e, http.MethodPost, "/friends/add", "alice", map[string]string{"recipientId": "ghost"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, e, http.MethodPost, "/friends/cancel", "alice", map[string]string{"friendShipDocId": "zz"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, e, http.MethodGet, "/friends?type=everyone", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListFriendsWithoutType(t *testing.T) {
	e := newEngine(t)

	code, env := call(t, e, http.MethodPost, "/friends/add", "alice", map[string]string{"recipientId": "bob"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	var tr TransitionResp
	require.NoError(t, json.Unmarshal(env.Data, &tr))

	code, env = call(t, e, http.MethodGet, "/friends", "bob", nil)
	require.Equal(t, http.StatusOK, code, env.Msg)
	var views []service.FriendView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "alice", views[0].FriendID)
	assert.Equal(t, "pending", string(views[0].Status))

	code, env = call(t, e, http.MethodGet, "/friends?status=accepted", "alice", nil)
	require.Equal(t, http.StatusOK, code, env.Msg)
	views = nil
	require.NoError(t, json.Unmarshal(env.Data, &views))
	assert.Empty(t, views)

	code, _ = call(t, e, http.MethodPost, "/friends/accept", "bob", map[string]string{"friendShipDocId": tr.FriendShipDocID})
	require.Equal(t, http.StatusOK, code)

	for _, uid := range []string{"alice", "bob"} {
		code, env = call(t, e, http.MethodGet, "/friends?status=accepted", uid, nil)
		require.Equal(t, http.StatusOK, code, env.Msg)
		views = nil
		require.NoError(t, json.Unmarshal(env.Data, &views))
		require.Len(t, views, 1, uid)
		assert.Equal(t, "accepted", string(views[0].Status))
	}

	code, _ = call(t, e, http.MethodGet, "/friends?status=maybe", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
