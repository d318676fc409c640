package router

import (
	"github.com/gin-gonic/gin"

	"dictat/internal/domain"
	mdw "dictat/internal/transport/http/middleware"
)

func NewAdminEngine(d Deps) *gin.Engine {
	r := d.base()

	// 管理端 v1（统一要求 admin 角色）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.Tokens, d.Revocations, d.Log, domain.RoleAdmin))

	d.Modules.MountAllAdmin(admin)
	return r
}
