package chat

import (
	"sync"
	"time"

	"PPChat/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnConfig ---- 常量参数（建议值） ----
type ConnConfig struct {
	SendQueue    int           `yaml:"sendQueue"`
	WriteWait    time.Duration `yaml:"writeWait"`
	PongWait     time.Duration `yaml:"pongWait"`
	PingInterval time.Duration `yaml:"pingInterval"`
	MaxMessage   int64         `yaml:"maxMessage"`
}

func (c ConnConfig) norm() ConnConfig {
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 75 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.MaxMessage <= 0 {
		c.MaxMessage = 64 << 10
	}
	return c
}

// Conn is one authenticated socket. Only the write pump touches ws for
// writing; everyone else goes through Send.
type Conn struct {
	ID     string
	UserID string

	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewConn(id, userID string, ws *websocket.Conn, queue int) *Conn {
	if queue <= 0 {
		queue = 256
	}
	return &Conn{
		ID:     id,
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, queue),
		done:   make(chan struct{}),
	}
}

// Send enqueues without blocking. It reports false when the connection is
// closed or its queue is full.
func (c *Conn) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// SendFrame encodes and enqueues one frame.
func (c *Conn) SendFrame(event string, data any) bool {
	b, err := EncodeFrame(event, data)
	if err != nil {
		logger.Warn("[WS] encode frame", zap.String("event", event), zap.Error(err))
		return false
	}
	return c.Send(b)
}

// Close stops the write pump, which then closes the socket.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) Done() <-chan struct{} { return c.done }

// writePump 唯一的写协程：业务帧优先，其次定时 ping；退出时发送 Close 帧并关闭底层连接
func (c *Conn) writePump(cfg ConnConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(cfg.WriteWait))
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Info("[WS] write failed", zap.String("conn", c.ID), zap.String("user", c.UserID), zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteWait)); err != nil {
				logger.Info("[WS] ping failed", zap.String("conn", c.ID), zap.Error(err))
				c.Close()
				return
			}
		}
	}
}
