package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resp "library-lending/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

// waitCtx 一直等到请求 ctx 结束，不写响应
func waitCtx(c *gin.Context) { <-c.Request.Context().Done() }

func timeoutEngine(errs *[]string, skip ...string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		for _, e := range c.Errors {
			*errs = append(*errs, e.Error())
		}
	})
	r.Use(Timeout(20*time.Millisecond, skip...))
	r.GET("/slow", waitCtx)
	r.GET("/fast", func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(gin.H{"n": 1})) })
	r.GET("/stream", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			c.Status(http.StatusInternalServerError)
		case <-time.After(60 * time.Millisecond):
			c.String(http.StatusOK, "done")
		}
	})
	return r
}

func TestTimeout_DeadlineAnswersTimeoutCode(t *testing.T) {
	var errs []string
	w := httptest.NewRecorder()
	timeoutEngine(&errs).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	var body resp.Resp
	require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, resp.CodeTimeout, body.Code)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "handler exceeded 20ms")
}

func TestTimeout_FastHandlerUntouched(t *testing.T) {
	var errs []string
	w := httptest.NewRecorder()
	timeoutEngine(&errs).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))

	var body resp.Resp
	require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, resp.CodeOK, body.Code)
	assert.Empty(t, errs)
}

func TestTimeout_ClientCancelWritesNothing(t *testing.T) {
	var errs []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	timeoutEngine(&errs).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil).WithContext(ctx))

	assert.Empty(t, w.Body.String())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "client gone")
}

func TestTimeout_SkippedRouteHasNoDeadline(t *testing.T) {
	var errs []string
	w := httptest.NewRecorder()
	timeoutEngine(&errs, "/stream").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "done", w.Body.String())
	assert.Empty(t, errs)
}
