package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "library-lending/internal/transport/http/response"
)

// ConcurrencyLimit 限制同时处理的请求数，借还都要行锁，DB 连接有限
func ConcurrencyLimit(max int64) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			if err := sem.Acquire(c.Request.Context(), 1); err != nil {
				c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeTooManyRequests, "server busy"))
				return
			}
		}
		defer sem.Release(1)
		c.Next()
	}
}
