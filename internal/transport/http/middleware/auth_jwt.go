package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dictat/internal/core/auth"
	"dictat/internal/domain"
	"dictat/internal/transport/http/ez"
	resp "dictat/internal/transport/http/response"
)

// RevocationChecker 由 account.Service 实现
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthJWT 校验 access token，写入 claims/userId/role。
// revoked 可为 nil；吊销存储不可用时放行并告警
func AuthJWT(tm *auth.TokenManager, revoked RevocationChecker, log *zap.Logger, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		claims, err := tm.Verify(strings.TrimPrefix(ah, "Bearer "), auth.TypeAccess)
		if err != nil {
			abort(c, resp.CodeUnauthorized, "invalid token")
			return
		}
		if revoked != nil {
			gone, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			switch {
			case err != nil:
				log.Warn("revocation check failed", zap.Error(err), zap.String("rid", c.GetString(ez.KeyRequestID)))
			case gone:
				abort(c, resp.CodeUnauthorized, "token revoked")
				return
			}
		}
		if len(roles) > 0 && !claims.Actor().Is(roles...) {
			abort(c, resp.CodeForbidden, "forbidden")
			return
		}
		c.Set(ez.KeyClaims, claims)
		c.Set(ez.KeyUserID, claims.UID)
		c.Set(ez.KeyRole, string(claims.Role))
		c.Next()
	}
}
