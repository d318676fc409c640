package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dictat/internal/transport/http/ez"
)

// query 里出现这些 key 时只记录 ****（不区分大小写）
var sensitiveQueryKeys = map[string]struct{}{
	"password": {}, "pwd": {}, "token": {}, "authorization": {}, "secret": {},
	"access_token": {}, "refresh_token": {}, "refreshtoken": {},
}

func maskQuery(q url.Values) map[string][]string {
	out := make(map[string][]string, len(q))
	for k, v := range q {
		if _, hit := sensitiveQueryKeys[strings.ToLower(k)]; hit {
			v = []string{"****"}
		}
		out[k] = v
	}
	return out
}

// statusWriter 记下状态码与实际写出的字节数
type statusWriter struct {
	gin.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// AccessLog 每个请求一行摘要；HTTP 5xx 记 Error。信封里的业务错误码由 ez 负责记录
func AccessLog(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		w := &statusWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := w.status
		if status == 0 {
			status = w.Status()
		}
		fields := []zap.Field{
			zap.String("rid", c.GetString(ez.KeyRequestID)),
			zap.String("user_id", c.GetString(ez.KeyUserID)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("ua", c.Request.UserAgent()),
			zap.Any("query", maskQuery(c.Request.URL.Query())),
			zap.Int("bytes", w.bytes),
		}
		if status >= 500 {
			l.Error("http", fields...)
			return
		}
		l.Info("http", fields...)
	}
}
