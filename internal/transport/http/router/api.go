package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"library-lending/internal/core/auth"
	"library-lending/internal/core/server"
	mdw "library-lending/internal/transport/http/middleware"
)

// NewAPIEngine 会员端；ws 为空时不挂推送端点
func NewAPIEngine(l *zap.Logger, jwter *auth.JWTer, reg *Registry, ws gin.HandlerFunc) *gin.Engine {
	r := server.NewRouter(l, server.Options{Name: "api"})
	r.Use(
		mdw.RequestID(),
		mdw.Metrics("api"),
		mdw.AccessLog(l, "/health", "/metrics"),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 长连接不能挂 Timeout
	if ws != nil {
		r.GET("/ws/notifications", ws)
	}

	api := r.Group("/api/v1",
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second),
		mdw.OptionalJWT(jwter),
	)
	reg.MountAPI(api)
	return r
}
