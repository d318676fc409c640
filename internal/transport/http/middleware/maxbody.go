package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "dictat/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小；上传接口额外留出 multipart 头部的余量
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			abort(c, resp.CodePayloadTooLarge, "request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
