package middleware

import (
	"net/http"
	"strings"
	"sync"

	"PPChat/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

type stage struct {
	name string
	h    gin.HandlerFunc
}

// MiddlewareManager runs named stages in registration order before the
// route handlers. A stage must not call c.Next; the first stage that
// aborts ends the chain.
type MiddlewareManager struct {
	mu     sync.RWMutex
	stages []stage
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Add 注册一个阶段；同名阶段会被替换
func (m *MiddlewareManager) Add(name string, h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stages {
		if m.stages[i].name == name {
			m.stages[i].h = h
			return
		}
	}
	m.stages = append(m.stages, stage{name: name, h: h})
}

// Names lists the stages in run order.
func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.stages))
	for _, s := range m.stages {
		out = append(out, s.name)
	}
	return out
}

func (m *MiddlewareManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stages)
}

func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = nil
}

// Use 返回挂到 Engine 上的总控 handler
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		snapshot := append([]stage(nil), m.stages...)
		m.mu.RUnlock()

		for _, s := range snapshot {
			s.h(c)
			if c.IsAborted() {
				logger.Debug("[HTTP] chain stopped",
					zap.String("stage", s.name),
					zap.String("path", c.Request.URL.Path),
					zap.Int("status", c.Writer.Status()))
				return
			}
		}
		c.Next()
	}
}

// RequestID keeps a caller supplied X-Request-ID or mints one, and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Writer.Header().Set(RequestIDHeader, id)
	}
}

// BodyLimit rejects request bodies larger than n bytes.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
	}
}
