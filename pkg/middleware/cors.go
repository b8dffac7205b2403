package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// corsWildcard はすべてのオリジンを許可する指定。
const corsWildcard = "*"

// AllowOrigin はオリジンが許可リストに含まれるかを判定する関数を返す。
// 許可リストに"*"を含めた場合はすべてのオリジンを許可する。
func AllowOrigin(allowedOrigins []string) func(origin string) bool {
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == corsWildcard {
			return func(string) bool { return true }
		}
		originsSet[o] = struct{}{}
	}
	return func(origin string) bool {
		_, ok := originsSet[origin]
		return ok
	}
}

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// 許可リストに"*"を含めた場合はすべてのオリジンを許可する。
// OPTIONSリクエストはハンドラーに渡さず204で応答する。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := slices.Contains(allowedOrigins, corsWildcard)
	allow := AllowOrigin(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := ""
		if allowAll {
			allowed = corsWildcard
		} else if allow(origin) {
			allowed = origin
		}

		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", "OPTIONS, GET, POST, PUT, PATCH, DELETE")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
