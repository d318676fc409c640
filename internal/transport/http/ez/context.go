package ez

import (
	"github.com/gin-gonic/gin"

	"dictat/internal/core/auth"
	"dictat/internal/domain"
)

// gin.Context 中的约定 key，由中间件写入
const (
	KeyRequestID = "rid"
	KeyClaims    = "claims"
	KeyUserID    = "userId"
	KeyRole      = "role"
)

func Claims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(KeyClaims)
	if !ok {
		return nil
	}
	cl, _ := v.(*auth.Claims)
	return cl
}

// Actor 未登录时返回零值
func Actor(c *gin.Context) domain.Actor {
	if cl := Claims(c); cl != nil {
		return cl.Actor()
	}
	return domain.Actor{}
}
