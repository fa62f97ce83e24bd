package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Memory 进程内实现，用于测试和单机运行。
// 每个 topic 按分区保存全部消息，Consume 从头读取；同一 group 只应有一个 Consume。
type Memory struct {
	partitions int
	l          *zap.Logger

	mu     sync.Mutex
	logs   map[string][][]Message
	wake   chan struct{}
	closed bool
}

func NewMemory(partitions int, l *zap.Logger) *Memory {
	if partitions < 1 {
		partitions = 1
	}
	return &Memory{
		partitions: partitions,
		l:          l,
		logs:       map[string][][]Message{},
		wake:       make(chan struct{}),
	}
}

func (b *Memory) Send(_ context.Context, m Message, done func(error)) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		if done != nil {
			done(ErrClosed)
		}
		return
	}
	parts := b.logs[m.Topic]
	if parts == nil {
		parts = make([][]Message, b.partitions)
		b.logs[m.Topic] = parts
	}
	p := Partition(m.Key, b.partitions)
	parts[p] = append(parts[p], m)
	close(b.wake)
	b.wake = make(chan struct{})
	b.mu.Unlock()

	if done != nil {
		done(nil)
	}
}

// Messages 返回 topic 下所有已发送的消息（按分区顺序拼接）
func (b *Memory) Messages(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, p := range b.logs[topic] {
		out = append(out, p...)
	}
	return out
}

func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.wake)
	}
	return nil
}

func (b *Memory) Consume(ctx context.Context, topic, group string, concurrency int, h Handler) error {
	n := workers(concurrency, b.partitions)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		ps := owned(i, n, b.partitions)
		g.Go(func() error {
			b.work(ctx, topic, group, ps, h)
			return nil
		})
	}
	return g.Wait()
}

func (b *Memory) work(ctx context.Context, topic, group string, ps []int, h Handler) {
	offsets := make(map[int]int, len(ps))
	for {
		b.mu.Lock()
		wake, closed := b.wake, b.closed
		var batch []Message
		if parts := b.logs[topic]; parts != nil {
			for _, p := range ps {
				batch = append(batch, parts[p][offsets[p]:]...)
				offsets[p] = len(parts[p])
			}
		}
		b.mu.Unlock()

		for _, m := range batch {
			dispatch(ctx, b.l, group, h, m)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-wake:
		}
	}
}
