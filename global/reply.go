package global

import (
	"net/http"

	"PPChat/logger"
	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OK 写出成功响应；msg 为给用户看的简短说明
func OK(c *gin.Context, msg string, data any) {
	m := Success(data)
	m.Msg = msg
	c.JSON(http.StatusOK, m)
}

// Error 按错误类型映射 HTTP 状态；5xx 只在日志里保留细节
func Error(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("[HTTP] request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	} else {
		logger.Debug("[HTTP] request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, Fail(err))
}

// BindJSON decodes the request body into T, mapping any failure to a
// validation error.
func BindJSON[T any](c *gin.Context) (*T, error) {
	var v T
	if err := c.ShouldBindJSON(&v); err != nil {
		return nil, errs.ErrArgs.WrapMsg("malformed request body")
	}
	return &v, nil
}
