package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"dictat/internal/core/auth"
	"dictat/internal/core/config"
	"dictat/internal/core/metrics"
	"dictat/internal/core/server"
	mdw "dictat/internal/transport/http/middleware"
)

// HealthCheck 返回 nil 表示依赖可用
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Log          *zap.Logger
	HTTP         config.HTTP
	MaxBodyBytes int64 // 上传上限加上 multipart 头部余量
	Tokens       *auth.TokenManager
	Revocations  mdw.RevocationChecker // 可为 nil
	Modules      *Registry
	Checks       map[string]HealthCheck
}

func (d Deps) base() *gin.Engine {
	r := server.NewEngine(d.Log, d.HTTP.CORSOrigins)
	r.Use(
		mdw.RequestID(),
		mdw.AccessLog(d.Log),
		mdw.Metrics(),
		mdw.Recovery(d.Log), // 在日志与指标内侧，panic 也会记为 500
		mdw.RateLimitPerIP(rate.Limit(d.HTTP.RateLimitRPS), d.HTTP.RateLimitBurst, 10*time.Minute),
		mdw.ConcurrencyLimit(d.HTTP.MaxConcurrency),
		mdw.MaxBodyBytes(d.MaxBodyBytes),
		mdw.Timeout(time.Duration(d.HTTP.RequestTimeoutSec)*time.Second),
		mdw.AuditContext(),
	)

	r.GET("/health", d.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

// health 任一依赖失败返回 503，方便探针直接判断
func (d Deps) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	out := gin.H{"ok": 1}
	for name, check := range d.Checks {
		if err := check(ctx); err != nil {
			d.Log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			out[name] = "down"
			out["ok"] = 0
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "up"
	}
	c.JSON(status, out)
}
