package security

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PPChat/global"
	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticVerifier map[string]string

func (v staticVerifier) Verify(_ context.Context, token string) (string, error) {
	if uid, ok := v[token]; ok {
		return uid, nil
	}
	return "", errs.ErrUnauthenticated.WrapMsg("invalid token")
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Middleware(staticVerifier{"good": "alice"}), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestMiddleware(t *testing.T) {
	r := newEngine()

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"bearer", "Bearer good", http.StatusOK, "alice"},
		{"raw token", "good", http.StatusOK, "alice"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"invalid", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, tc.body, w.Body.String())
				return
			}
			var m global.Msg
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
			assert.Equal(t, http.StatusUnauthorized, m.Code)
		})
	}
}

func TestQueryTokenIgnoredForHTTP(t *testing.T) {
	r := newEngine()
	req := httptest.NewRequest(http.MethodGet, "/me?token=good", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
