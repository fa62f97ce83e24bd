package bus

import (
	"context"
	"sync"
)

type sendReq struct {
	ctx  context.Context
	m    Message
	done func(error)
}

// sendQueue 每个分区一个 goroutine 串行发送，保证同 key 的发送顺序
type sendQueue struct {
	mu     sync.RWMutex
	closed bool
	lanes  []chan sendReq
	wg     sync.WaitGroup
}

func newSendQueue(partitions, depth int, send func(ctx context.Context, m Message) error) *sendQueue {
	q := &sendQueue{lanes: make([]chan sendReq, partitions)}
	for i := range q.lanes {
		ch := make(chan sendReq, depth)
		q.lanes[i] = ch
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for r := range ch {
				err := send(r.ctx, r.m)
				if r.done != nil {
					r.done(err)
				}
			}
		}()
	}
	return q
}

func (q *sendQueue) push(ctx context.Context, m Message, done func(error)) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		if done != nil {
			done(ErrClosed)
		}
		return
	}
	select {
	case q.lanes[Partition(m.Key, len(q.lanes))] <- sendReq{ctx: ctx, m: m, done: done}:
	case <-ctx.Done():
		if done != nil {
			done(ctx.Err())
		}
	}
}

// close 等待已入队的消息发完
func (q *sendQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, ch := range q.lanes {
		close(ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
