package chat

import (
	"context"
	"strconv"

	"PPChat/global"
	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	"PPChat/module/chat/model"
	"PPChat/module/chat/room"
	"PPChat/service/storage"
	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
)

type openReq struct {
	FriendID string `json:"friendId"`
}

type openResp struct {
	ChatRoomID string `json:"chatRoomId"`
}

// HistoryReader is the read side of the message log.
type HistoryReader interface {
	History(ctx context.Context, roomID string, limit int64) ([]model.Message, error)
}

const maxHistoryLimit = 200

type Handler struct {
	rooms   *room.Resolver
	history HistoryReader
}

func NewHandler(rooms *room.Resolver, history HistoryReader) *Handler {
	return &Handler{rooms: rooms, history: history}
}

func (h *Handler) Register(rt *middleware.Router) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.POST("/chats", h.open, auth)
	rt.GET("/chat-rooms", h.list, auth)
	rt.GET("/chat-rooms/:roomId/messages", h.messages, auth)
}

// open 获取或创建与好友的一对一房间
func (h *Handler) open(c *gin.Context) {
	req, err := global.BindJSON[openReq](c)
	if err != nil {
		global.Error(c, err)
		return
	}
	r, err := h.rooms.GetOrCreate(c.Request.Context(), midsec.UserID(c), req.FriendID)
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", openResp{ChatRoomID: r.ID})
}

func (h *Handler) list(c *gin.Context) {
	rows, err := h.rooms.ListRooms(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", rows)
}

// messages 最近的历史消息，新的在前；仅房间成员可读
func (h *Handler) messages(c *gin.Context) {
	limit := int64(storage.DefaultHistoryLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			global.Error(c, errs.ErrArgs.WrapMsg("limit must be between 1 and 200"))
			return
		}
		limit = n
	}
	roomID := c.Param("roomId")
	if _, err := h.rooms.Room(c.Request.Context(), midsec.UserID(c), roomID); err != nil {
		global.Error(c, err)
		return
	}
	rows, err := h.history.History(c.Request.Context(), roomID, limit)
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", rows)
}
