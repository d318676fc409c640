package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dictat/internal/transport/http/ez"
	resp "dictat/internal/transport/http/response"
)

// Recovery 记录 panic 与堆栈，对外只返回通用 500
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				l.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("rid", c.GetString(ez.KeyRequestID)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				abort(c, resp.CodeServerError, "")
			}
		}()
		c.Next()
	}
}
