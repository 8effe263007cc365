package middleware

import (
	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	IsAuth bool
}

// Router 持有注入的认证中间件，按 RouteOpt 决定是否挂载
type Router struct {
	Auth gin.HandlerFunc
}

func NewRouter(auth gin.HandlerFunc) *Router {
	return &Router{Auth: auth}
}

// 封装 POST
func (rt *Router) POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, rt.Auth, handler)
	} else {
		r.POST(path, handler)
	}
}

// 封装 GET
func (rt *Router) GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, rt.Auth, handler)
	} else {
		r.GET(path, handler)
	}
}

// 封装 PUT
func (rt *Router) PUT(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.PUT(path, rt.Auth, handler)
	} else {
		r.PUT(path, handler)
	}
}

// 封装 DELETE
func (rt *Router) DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.DELETE(path, rt.Auth, handler)
	} else {
		r.DELETE(path, handler)
	}
}
