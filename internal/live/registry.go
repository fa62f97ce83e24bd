// Package live 在线用户的推送通道，每个用户最多一个连接。
package live

import (
	"sync"

	"go.uber.org/zap"

	"library-lending/internal/metrics"
)

// Conn 由 *websocket.Conn 满足
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Channel 一个已注册连接；写操作串行
type Channel struct {
	mu sync.Mutex
	c  Conn
}

func (ch *Channel) write(v any) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.c.WriteJSON(v)
}

type Notification struct {
	Message string `json:"message"`
}

type Registry struct {
	m sync.Map // int64 -> *Channel
	l *zap.Logger
}

func NewRegistry(l *zap.Logger) *Registry { return &Registry{l: l} }

// Connect 注册连接，后连上的替换先前的并关闭旧连接
func (r *Registry) Connect(userID int64, c Conn) *Channel {
	ch := &Channel{c: c}
	if prev, loaded := r.m.Swap(userID, ch); loaded {
		old := prev.(*Channel)
		old.mu.Lock()
		_ = old.c.Close()
		old.mu.Unlock()
		r.l.Info("live channel replaced", zap.Int64("userId", userID))
	} else {
		metrics.LiveConnections.Inc()
	}
	return ch
}

// Disconnect 只移除仍是 ch 的条目，旧连接的断开不会踢掉新连接
func (r *Registry) Disconnect(userID int64, ch *Channel) {
	if r.m.CompareAndDelete(userID, ch) {
		metrics.LiveConnections.Dec()
	}
}

func (r *Registry) Connected(userID int64) bool {
	_, ok := r.m.Load(userID)
	return ok
}

// Push 尽力推送：无连接或写失败都只记录
func (r *Registry) Push(userID int64, text string) {
	v, ok := r.m.Load(userID)
	if !ok {
		return
	}
	if err := v.(*Channel).write(Notification{Message: text}); err != nil {
		metrics.PushesSent.WithLabelValues("failed").Inc()
		r.l.Warn("live push failed", zap.Int64("userId", userID), zap.Error(err))
		return
	}
	metrics.PushesSent.WithLabelValues("ok").Inc()
}
