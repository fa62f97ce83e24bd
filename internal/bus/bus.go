// Package bus 分区有序的发布/订阅抽象：同一 key 的消息进入同一分区，
// 每个分区同一时刻只被一个 worker 处理。
package bus

import (
	"context"
	"hash/fnv"
	"runtime/debug"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-lending/internal/metrics"
)

var ErrClosed = errors.New("bus closed")

type Message struct {
	Topic string
	Key   string
	Value []byte
}

// Producer.Send 不阻塞等待确认，结果通过 done 回调（可为 nil）
type Producer interface {
	Send(ctx context.Context, m Message, done func(error))
	Close() error
}

type Handler func(ctx context.Context, m Message) error

// Consumer.Consume 阻塞直到 ctx 取消
type Consumer interface {
	Consume(ctx context.Context, topic, group string, concurrency int, h Handler) error
}

type Bus interface {
	Producer
	Consumer
}

// Partition 对 key 做 fnv-1a 取模
func Partition(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// owned 返回第 worker 个 worker 负责的分区
func owned(worker, concurrency, partitions int) []int {
	var ps []int
	for p := worker; p < partitions; p += concurrency {
		ps = append(ps, p)
	}
	return ps
}

func workers(concurrency, partitions int) int {
	if concurrency < 1 {
		return 1
	}
	if concurrency > partitions {
		return partitions
	}
	return concurrency
}

// dispatch 执行 handler；失败只记日志，消息照常确认
func dispatch(ctx context.Context, l *zap.Logger, group string, h Handler, m Message) {
	defer func() {
		if r := recover(); r != nil {
			metrics.MessagesConsumed.WithLabelValues(m.Topic, group, "panic").Inc()
			l.Error("handler panic", zap.String("topic", m.Topic), zap.String("key", m.Key),
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	if err := h(ctx, m); err != nil {
		metrics.MessagesConsumed.WithLabelValues(m.Topic, group, "error").Inc()
		l.Error("handle message failed", zap.String("topic", m.Topic), zap.String("group", group),
			zap.String("key", m.Key), zap.Error(err))
		return
	}
	metrics.MessagesConsumed.WithLabelValues(m.Topic, group, "ok").Inc()
}
