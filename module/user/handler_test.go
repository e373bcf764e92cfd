package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PPChat/middleware"
	"PPChat/module/user/model"
	"PPChat/module/user/service"
	"PPChat/module/user/store"
	"PPChat/tools/errs"
	"PPChat/tools/retry"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bearerIsUser struct{}

func (bearerIsUser) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", errs.ErrUnauthenticated.Wrap()
	}
	return token, nil
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

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := service.NewService(store.NewMemStore(), service.Options{
		ClientBaseURL: "https://ppchat.example.com",
		Retry:         retry.Policy{MaxAttempts: 2, Clock: noWait{}},
		Now:           func() time.Time { return now },
	})
	e := gin.New()
	NewHandler(svc).Register(middleware.NewRouter(e, bearerIsUser{}))
	return e
}

func do(t *testing.T, e *gin.Engine, method, path, uid string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+uid)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestSignupAndProfile(t *testing.T) {
	e := newEngine()

	code, env := do(t, e, http.MethodPost, "/users/signup", "alice",
		map[string]any{"nickname": "Alice", "gender": model.GenderFemale, "email": "a@example.com"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	var u model.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "alice", u.ID)
	assert.Equal(t, "https://ppchat.example.com/img/default_profile_female.png", u.ProfileImgURL)

	code, _ = do(t, e, http.MethodPost, "/users/signup", "alice", map[string]any{"nickname": "Again", "gender": model.GenderFemale})
	assert.Equal(t, http.StatusConflict, code)

	code, env = do(t, e, http.MethodPut, "/users/me", "alice", map[string]any{"statusMessage": "hello"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "hello", u.StatusMessage)

	code, env = do(t, e, http.MethodGet, "/users/alice", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var p model.PublicProfile
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "Alice", p.Nickname)
	assert.NotContains(t, string(env.Data), "a@example.com")

	code, env = do(t, e, http.MethodGet, "/users/me/profile-image", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var img imageResp
	require.NoError(t, json.Unmarshal(env.Data, &img))
	assert.Equal(t, u.ProfileImgURL, img.URL)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 5, 0, 0, time.UTC), img.ExpiresAt)
}

func TestUserErrors(t *testing.T) {
	e := newEngine()

	code, _ := do(t, e, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, e, http.MethodGet, "/users/me", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, e, http.MethodPost, "/users/signup", "bob", map[string]any{"nickname": "", "gender": model.GenderMale})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, e, http.MethodPut, "/users/me", "bob", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
}
