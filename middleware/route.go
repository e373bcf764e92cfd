package middleware

import (
	midsec "PPChat/middleware/security"
	toolsec "PPChat/tools/security"

	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	IsAuth bool
}

// Router 在注册路由时按 RouteOpt 决定是否挂载鉴权
type Router struct {
	r    gin.IRoutes
	auth gin.HandlerFunc
}

func NewRouter(r gin.IRoutes, v toolsec.Verifier) *Router {
	return &Router{r: r, auth: midsec.Middleware(v)}
}

func (x *Router) chain(h gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if opt.IsAuth {
		return []gin.HandlerFunc{x.auth, h}
	}
	return []gin.HandlerFunc{h}
}

// 封装 POST
func (x *Router) POST(path string, h gin.HandlerFunc, opt RouteOpt) {
	x.r.POST(path, x.chain(h, opt)...)
}

// 封装 GET
func (x *Router) GET(path string, h gin.HandlerFunc, opt RouteOpt) {
	x.r.GET(path, x.chain(h, opt)...)
}

// 封装 PUT
func (x *Router) PUT(path string, h gin.HandlerFunc, opt RouteOpt) {
	x.r.PUT(path, x.chain(h, opt)...)
}
