package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	resp "library-lending/internal/transport/http/response"
)

// Timeout 给请求 ctx 加期限，handler 超时还没写响应时回 CodeTimeout。
// skip 按路由模板（c.FullPath）跳过，不受期限约束。
func Timeout(d time.Duration, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skipped[c.FullPath()]; ok {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if c.Writer.Written() {
			return
		}
		switch err := ctx.Err(); {
		case errors.Is(err, context.DeadlineExceeded):
			_ = c.Error(errors.Wrapf(err, "handler exceeded %s", d))
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeTimeout, "timeout"))
		case errors.Is(err, context.Canceled):
			// 客户端先断了，只记一笔
			_ = c.Error(errors.Wrap(err, "client gone"))
			c.Abort()
		}
	}
}
