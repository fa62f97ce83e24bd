package live

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	resp "library-lending/internal/transport/http/response"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	writeWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn 给每次推送加写超时
type wsConn struct{ *websocket.Conn }

func (c wsConn) WriteJSON(v any) error {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

// Handler GET /ws/notifications?userId=
func Handler(reg *Registry, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := strconv.ParseInt(c.Query("userId"), 10, 64)
		if err != nil || uid <= 0 {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "invalid userId"))
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			l.Warn("ws upgrade failed", zap.Int64("userId", uid), zap.Error(err))
			return
		}
		ch := reg.Connect(uid, wsConn{conn})
		defer func() {
			reg.Disconnect(uid, ch)
			_ = conn.Close()
		}()

		stop := make(chan struct{})
		defer close(stop)
		go keepAlive(conn, stop)

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
		// 客户端不发业务消息，读循环只用于感知断开
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}
}

// WriteControl 可与其他写并发调用
func keepAlive(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
