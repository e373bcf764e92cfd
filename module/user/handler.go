package user

import (
	"time"

	"PPChat/global"
	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	"PPChat/module/user/model"
	"PPChat/module/user/service"

	"github.com/gin-gonic/gin"
)

type imageResp struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rt *middleware.Router) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.POST("/users/signup", h.signup, auth)
	rt.GET("/users/me", h.me, auth)
	rt.PUT("/users/me", h.update, auth)
	rt.GET("/users/me/profile-image", h.profileImage, auth)
	rt.GET("/users/:id", h.public, auth)
}

// signup 身份已由 token 确认，这里只建资料
func (h *Handler) signup(c *gin.Context) {
	in, err := global.BindJSON[service.SignupInput](c)
	if err != nil {
		global.Error(c, err)
		return
	}
	u, err := h.svc.Signup(c.Request.Context(), midsec.UserID(c), *in)
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "signed up", u)
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.svc.GetWithRetry(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", u)
}

func (h *Handler) update(c *gin.Context) {
	upd, err := global.BindJSON[model.ProfileUpdate](c)
	if err != nil {
		global.Error(c, err)
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), midsec.UserID(c), *upd)
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "profile updated", u)
}

func (h *Handler) public(c *gin.Context) {
	p, err := h.svc.PublicProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", p)
}

func (h *Handler) profileImage(c *gin.Context) {
	url, exp, err := h.svc.ProfileImageURL(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		global.Error(c, err)
		return
	}
	global.OK(c, "", imageResp{URL: url, ExpiresAt: exp})
}
