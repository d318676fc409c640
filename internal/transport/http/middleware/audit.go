package middleware

import (
	"github.com/gin-gonic/gin"

	"dictat/internal/service/audit"
	"dictat/internal/transport/http/ez"
)

// AuditContext 把客户端 IP、UA、请求 ID 放进 ctx，审计记录时取用
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithRequestInfo(c.Request.Context(), audit.RequestInfo{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: c.GetString(ez.KeyRequestID),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
