package router

import (
	"github.com/gin-gonic/gin"

	mdw "dictat/internal/transport/http/middleware"
)

func NewAPIEngine(d Deps) *gin.Engine {
	r := d.base()

	api := r.Group("/api/v1")
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(d.Tokens, d.Revocations, d.Log))

	d.Modules.MountAllAPI(api, authed)
	return r
}
