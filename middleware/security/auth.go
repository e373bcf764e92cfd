package security

import (
	"PPChat/global"
	"PPChat/logger"
	"PPChat/tools/errs"
	toolsec "PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// gin context keys
// 后续模块统一用这俩 key 读取
const (
	PPCtxUserIDKey   = "uid"               // string
	PPCtxAuthHashKey = "authorizationHash" // string, 仅用于日志关联
)

// Middleware verifies the bearer token and stores the caller's user id.
// Failures end the request with 401 and the standard envelope.
func Middleware(v toolsec.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := toolsec.TokenFromRequest(c.Request, false)
		if token == "" {
			c.AbortWithStatusJSON(401, global.Fail(errs.ErrUnauthenticated.WrapMsg("missing token")))
			return
		}
		hash := toolsec.HashToken(token)
		uid, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debug("[Auth] token rejected", zap.String("hash", hash), zap.Error(err))
			c.AbortWithStatusJSON(401, global.Fail(errs.ErrUnauthenticated.Wrap()))
			return
		}
		c.Set(PPCtxUserIDKey, uid)
		c.Set(PPCtxAuthHashKey, hash)
		c.Next()
	}
}

// UserID returns the authenticated caller, or "" outside Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(PPCtxUserIDKey)
}
