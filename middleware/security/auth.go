package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"MGProject/global"
	"MGProject/tools/errs"
	sec "MGProject/tools/security"
)

// —— context key ——
// 后续模块统一用这俩 key 读取
const (
	CtxAuthKey     = "authorization" // string，原始凭证
	CtxIdentityKey = "identity"      // string，已解析身份
)

type Options struct {
	// 读取哪个请求头
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               CtxAuthKey,
		EnableAuthorizationBearer: true,
	}
}

// Middleware 提取凭证 → IdentityResolver 解析身份 → 写入 context。
// 解析失败统一 401，业务 handler 不再关心凭证格式。
func Middleware(resolver sec.IdentityResolver, opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		// 兼容 Authorization: Bearer xxx
		if opts.EnableAuthorizationBearer && strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, global.Fail(errs.ErrAuth.WrapMsg("missing credential")))
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, global.Fail(err))
			return
		}

		c.Set(CtxAuthKey, token)
		c.Set(CtxIdentityKey, identity)
		c.Next()
	}
}

// IdentityFrom 读取已解析身份
func IdentityFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
