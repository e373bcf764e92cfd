package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"PPChat/global"
	"PPChat/logger"
	"PPChat/service/storage"
	"PPChat/tools/errs"
	"PPChat/tools/ids"
	"PPChat/tools/safe"
	"PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// OnlineMarker records the user's online flag on the profile.
type OnlineMarker interface {
	SetOnline(ctx context.Context, uid string, online bool) error
}

type ServerOptions struct {
	Conn           ConnConfig
	AllowedOrigins []string // 为空时不校验 Origin
}

// Server owns the socket lifecycle: handshake, read loop and cleanup.
type Server struct {
	verifier security.Verifier
	reg      *Registry
	hub      *Hub
	relay    *Relay
	presence storage.Presence
	users    OnlineMarker
	cfg      ConnConfig
	upgrader websocket.Upgrader
}

func NewServer(verifier security.Verifier, reg *Registry, hub *Hub, relay *Relay, presence storage.Presence, users OnlineMarker, opts ServerOptions) *Server {
	safe.MustNotNil(verifier, "verifier")
	safe.MustNotNil(reg, "registry")
	safe.MustNotNil(hub, "hub")
	safe.MustNotNil(relay, "relay")
	if presence == nil {
		presence = storage.NoopPresence{}
	}
	s := &Server{
		verifier: verifier,
		reg:      reg,
		hub:      hub,
		relay:    relay,
		presence: presence,
		users:    users,
		cfg:      opts.Conn.norm(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return s
}

// HandleWS authenticates before upgrading, so a bad token gets a plain 401.
func (s *Server) HandleWS(c *gin.Context) {
	token := security.TokenFromRequest(c.Request, true)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, global.Fail(errs.ErrUnauthenticated.WrapMsg("missing token")))
		return
	}
	userID, err := s.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		logger.Info("[WS] handshake rejected", zap.String("token", security.HashToken(token)), zap.Error(err))
		c.AbortWithStatusJSON(errs.HTTPStatus(err), global.Fail(err))
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败，Upgrade 已写回错误响应
		logger.Info("[WS] upgrade failed", zap.String("user", userID), zap.Error(err))
		return
	}
	s.serve(NewConn(ids.GenerateString(), userID, ws, s.cfg.SendQueue))
}

func (s *Server) serve(conn *Conn) {
	s.reg.Register(conn.UserID, conn)
	s.markOnline(conn.UserID)
	logger.Info("[WS] connected", zap.String("user", conn.UserID), zap.String("conn", conn.ID))

	go conn.writePump(s.cfg)
	defer s.cleanup(conn)

	ws := conn.ws
	ws.SetReadLimit(s.cfg.MaxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		s.refreshPresence(conn.UserID)
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	// ---- 读循环：只读不写，出错即退出 ----
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			logReadError(conn, err)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		event, payload, perr := ParseFrame(data)
		if perr != nil {
			conn.SendFrame(EventError, ErrorPayload{Message: errs.PublicMessage(perr)})
			continue
		}
		s.relay.Handle(context.Background(), conn, event, payload)
	}
}

// cleanup runs once per socket. Only the connection still registered for the
// user flips them offline.
func (s *Server) cleanup(conn *Conn) {
	conn.Close()
	s.hub.LeaveAll(conn)
	if !s.reg.Release(conn.UserID, conn.ID) {
		logger.Debug("[WS] superseded connection closed", zap.String("user", conn.UserID), zap.String("conn", conn.ID))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.presence.Offline(ctx, conn.UserID); err != nil {
		logger.Warn("[WS] presence offline", zap.String("user", conn.UserID), zap.Error(err))
	}
	if s.users != nil {
		if err := s.users.SetOnline(ctx, conn.UserID, false); err != nil {
			logger.Debug("[WS] mark offline", zap.String("user", conn.UserID), zap.Error(err))
		}
	}
	logger.Info("[WS] disconnected", zap.String("user", conn.UserID), zap.String("conn", conn.ID))
}

func (s *Server) markOnline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.presence.Online(ctx, userID); err != nil {
		logger.Warn("[WS] presence online", zap.String("user", userID), zap.Error(err))
	}
	if s.users != nil {
		// 未注册的用户也允许连接，只是没有资料可以标记
		if err := s.users.SetOnline(ctx, userID, true); err != nil {
			logger.Debug("[WS] mark online", zap.String("user", userID), zap.Error(err))
		}
	}
}

func (s *Server) refreshPresence(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.presence.Online(ctx, userID); err != nil {
		logger.Debug("[WS] presence refresh", zap.String("user", userID), zap.Error(err))
	}
}

// Shutdown closes every live connection; read loops then run their cleanup.
func (s *Server) Shutdown() {
	s.reg.CloseAll()
}

func logReadError(conn *Conn, err error) {
	fields := []zap.Field{zap.String("user", conn.UserID), zap.String("conn", conn.ID)}
	var ne net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.Debug("[WS] peer closed", fields...)
	case errors.As(err, &ne) && ne.Timeout():
		logger.Info("[WS] read timeout", fields...)
	default:
		logger.Debug("[WS] read error", append(fields, zap.Error(err))...)
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}
