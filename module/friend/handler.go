package friend

import (
	"context"

	"PPChat/global"
	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	"PPChat/module/friend/model"
	"PPChat/module/friend/service"

	"github.com/gin-gonic/gin"
)

type targetReq struct {
	RecipientID string `json:"recipientId"`
}

type docReq struct {
	FriendShipDocID string `json:"friendShipDocId"`
}

// TransitionResp is the body every mutating friend endpoint returns.
type TransitionResp struct {
	FriendShipDocID string             `json:"friendShipDocId"`
	Status          model.Status       `json:"status"`
	Notification    model.Notification `json:"notification"`
}

// transition is any of the service's state changes: actor acts on id.
type transition func(ctx context.Context, actor, id string) (*service.Result, error)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rt *middleware.Router) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.POST("/friends/add", byTarget(h.svc.SendRequest, "friend request sent"), auth)
	rt.POST("/friends/blocked", byTarget(h.svc.Block, "user blocked"), auth)
	rt.POST("/friends/cancel", byDoc(h.svc.Cancel, "friend request cancelled"), auth)
	rt.POST("/friends/accept", byDoc(h.svc.Accept, "friend request accepted"), auth)
	rt.POST("/friends/reject", byDoc(h.svc.Reject, "friend request rejected"), auth)
	rt.POST("/friends/remove", byDoc(h.svc.Remove, "friend removed"), auth)
	rt.GET("/friendShip", h.friendShips, auth)
	rt.GET("/friends", h.requests, auth)
	rt.GET("/notifications", h.notifications, auth)
}

func byTarget(fn transition, okMsg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := global.BindJSON[targetReq](c)
		if err != nil {
			global.Error(c, err)
			return
		}
		reply(c, fn, req.RecipientID, okMsg)
	}
}

func byDoc(fn transition, okMsg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := global.BindJSON[docReq](c)
		if err != nil {
			global.Error(c, err)
			return
		}
		reply(c, fn, req.FriendShipDocID, okMsg)
	}
}

func reply(c *gin.Context, fn transition, id, okMsg string) {
	res, err := fn(c.Request.Context(), midsec.UserID(c), id)
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, okMsg, TransitionResp{
		FriendShipDocID: res.Friendship.ID.Hex(),
		Status:          res.Friendship.Status,
		Notification:    res.Notification,
	})
}

func (h *Handler) friendShips(c *gin.Context) {
	rows, err := h.svc.ListFriendShips(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", rows)
}

func (h *Handler) requests(c *gin.Context) {
	rows, err := h.svc.ListRequests(c.Request.Context(), midsec.UserID(c), c.Query("type"), c.Query("status"))
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", rows)
}

func (h *Handler) notifications(c *gin.Context) {
	rows, err := h.svc.ListNotifications(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", rows)
}
