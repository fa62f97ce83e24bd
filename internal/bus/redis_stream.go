package bus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type RedisOptions struct {
	Partitions int
	MaxLen     int64         // XADD MAXLEN ~，0 表示不裁剪
	Block      time.Duration // XREADGROUP 阻塞时长
	Consumer   string        // 消费者名前缀，重启后用同名取回未 ack 的消息
}

// RedisStreams 每个分区一条 stream：<topic>:<p>
type RedisStreams struct {
	rdb  *redis.Client
	opt  RedisOptions
	l    *zap.Logger
	out  *sendQueue
	idle time.Duration
}

func NewRedisStreams(rdb *redis.Client, opt RedisOptions, l *zap.Logger) *RedisStreams {
	if opt.Partitions < 1 {
		opt.Partitions = 1
	}
	if opt.Block <= 0 {
		opt.Block = 2 * time.Second
	}
	if opt.Consumer == "" {
		opt.Consumer = "consumer"
	}
	r := &RedisStreams{rdb: rdb, opt: opt, l: l, idle: time.Second}
	r.out = newSendQueue(opt.Partitions, 1024, r.xadd)
	return r
}

func stream(topic string, p int) string { return fmt.Sprintf("%s:%d", topic, p) }

func (r *RedisStreams) xadd(ctx context.Context, m Message) error {
	args := &redis.XAddArgs{
		Stream: stream(m.Topic, Partition(m.Key, r.opt.Partitions)),
		Values: map[string]any{"key": m.Key, "value": m.Value},
	}
	if r.opt.MaxLen > 0 {
		args.MaxLen = r.opt.MaxLen
		args.Approx = true
	}
	return errors.Wrap(r.rdb.XAdd(ctx, args).Err(), "xadd")
}

func (r *RedisStreams) Send(ctx context.Context, m Message, done func(error)) {
	r.out.push(ctx, m, done)
}

func (r *RedisStreams) Close() error {
	r.out.close()
	return nil
}

func (r *RedisStreams) Consume(ctx context.Context, topic, group string, concurrency int, h Handler) error {
	for p := 0; p < r.opt.Partitions; p++ {
		err := r.rdb.XGroupCreateMkStream(ctx, stream(topic, p), group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return errors.Wrapf(err, "create group %s on %s", group, stream(topic, p))
		}
	}

	n := workers(concurrency, r.opt.Partitions)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		var streams []string
		for _, p := range owned(i, n, r.opt.Partitions) {
			streams = append(streams, stream(topic, p))
		}
		consumer := fmt.Sprintf("%s-%d", r.opt.Consumer, i)
		g.Go(func() error {
			r.work(ctx, group, consumer, streams, h)
			return nil
		})
	}
	return g.Wait()
}

func (r *RedisStreams) work(ctx context.Context, group, consumer string, streams []string, h Handler) {
	// 先取回本消费者名下未 ack 的消息，再读新消息
	id := "0"
	for ctx.Err() == nil {
		args := &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  append(append([]string{}, streams...), repeat(id, len(streams))...),
			Count:    64,
			Block:    r.opt.Block,
		}
		if id == "0" {
			args.Block = -1
		}
		res, err := r.rdb.XReadGroup(ctx, args).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.l.Warn("xreadgroup failed", zap.String("group", group), zap.Strings("streams", streams), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.idle):
			}
			continue
		}

		got := 0
		for _, s := range res {
			for _, xm := range s.Messages {
				got++
				if xm.Values != nil {
					m := Message{Topic: topicOf(s.Stream), Key: field(xm.Values, "key"), Value: []byte(field(xm.Values, "value"))}
					dispatch(ctx, r.l, group, h, m)
				}
				// 已被 MAXLEN 裁剪的条目 Values 为空，直接 ack
				if err := r.rdb.XAck(context.WithoutCancel(ctx), s.Stream, group, xm.ID).Err(); err != nil {
					r.l.Warn("xack failed", zap.String("stream", s.Stream), zap.String("id", xm.ID), zap.Error(err))
				}
			}
		}
		if id == "0" && got == 0 {
			id = ">"
		}
	}
}

func topicOf(s string) string {
	if i := strings.LastIndexByte(s, ':'); i > 0 {
		return s[:i]
	}
	return s
}

func field(v map[string]any, k string) string {
	switch x := v[k].(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return ""
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
