package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "dictat/internal/transport/http/response"
)

// 中间件统一用 200 + 业务码的信封中止请求
func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(http.StatusOK, resp.Error(code, msg))
}
