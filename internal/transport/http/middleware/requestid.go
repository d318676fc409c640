package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dictat/internal/transport/http/ez"
)

const HeaderRequestID = "X-Request-ID"

// RequestID 透传上游的请求 ID，没有就生成一个（过长的也重新生成）
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(HeaderRequestID)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Set(ez.KeyRequestID, rid)
		c.Next()
	}
}
