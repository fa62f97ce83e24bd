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

func NewAdminEngine(l *zap.Logger, jwter *auth.JWTer, reg *Registry) *gin.Engine {
	r := server.NewRouter(l, server.Options{Name: "admin"})
	r.Use(
		mdw.RequestID(),
		mdw.Metrics("admin"),
		mdw.AccessLog(l, "/health", "/metrics"),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 管理端 v1 统一要求 admin 角色；手动扫描可能较慢，超时放宽
	admin := r.Group("/admin/v1",
		mdw.RateLimit(50, 100),
		mdw.ConcurrencyLimit(50),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(60*time.Second),
		mdw.AuthJWT(jwter, auth.RoleAdmin),
	)
	reg.MountAdmin(admin)
	return r
}
