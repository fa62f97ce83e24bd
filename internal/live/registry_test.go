package live

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu     sync.Mutex
	got    []any
	closed bool
	err    error
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestConnect_LastConnectionWins(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	first, second := &fakeConn{}, &fakeConn{}

	ch1 := r.Connect(1, first)
	r.Connect(1, second)
	assert.True(t, first.closed)

	r.Push(1, "hello")
	assert.Empty(t, first.got)
	assert.Equal(t, []any{Notification{Message: "hello"}}, second.got)

	// 旧连接的断开不影响新连接
	r.Disconnect(1, ch1)
	assert.True(t, r.Connected(1))
}

func TestDisconnect_RemovesCurrent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c := &fakeConn{}
	ch := r.Connect(2, c)
	r.Disconnect(2, ch)
	assert.False(t, r.Connected(2))

	r.Push(2, "ignored")
	assert.Empty(t, c.got)
}

func TestPush_FailureIsolatedPerUser(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	bad, good := &fakeConn{err: errors.New("broken pipe")}, &fakeConn{}
	r.Connect(1, bad)
	r.Connect(2, good)

	r.Push(1, "x")
	r.Push(2, "x")
	r.Push(3, "nobody")

	assert.Len(t, good.got, 1)
	assert.True(t, r.Connected(1))
}

func TestPush_Concurrent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c := &fakeConn{}
	r.Connect(5, c)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Push(5, "m")
		}()
	}
	wg.Wait()
	assert.Len(t, c.got, 50)
}

func TestHandler_WebSocketRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry(zap.NewNop())
	e := gin.New()
	e.GET("/ws/notifications", Handler(reg, zap.NewNop()))
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications?userId=11"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return reg.Connected(11) }, time.Second, 5*time.Millisecond)
	reg.Push(11, "New book added: Dune")

	var n Notification
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "New book added: Dune", n.Message)

	conn.Close()
	require.Eventually(t, func() bool { return !reg.Connected(11) }, 2*time.Second, 5*time.Millisecond)
}

func TestHandler_RejectsBadUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.GET("/ws/notifications", Handler(NewRegistry(zap.NewNop()), zap.NewNop()))

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest("GET", "/ws/notifications?userId=abc", nil))
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"code":400`)
}
