package event

import (
	"context"
	"time"

	"go.uber.org/zap"

	"library-lending/internal/bus"
	"library-lending/internal/domain"
	"library-lending/internal/metrics"
)

// Deduper.Claim 对同一个 key 只返回一次 true
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
}

type deduped interface {
	DedupKey() string
}

// Publisher 把领域事件异步投递到总线。
// 发送结果由回调驱动：失败后用定时器安排下一次尝试，调用方不等待。
type Publisher struct {
	out         bus.Producer
	l           *zap.Logger
	dedup       Deduper
	maxAttempts int
	delay       time.Duration
	after       func(time.Duration, func())
}

type Option func(*Publisher)

func WithRetry(attempts int, delay time.Duration) Option {
	return func(p *Publisher) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
		if delay >= 0 {
			p.delay = delay
		}
	}
}

func WithDeduper(d Deduper) Option { return func(p *Publisher) { p.dedup = d } }

// WithScheduler 替换重试定时器，测试里用同步调用
func WithScheduler(after func(time.Duration, func())) Option {
	return func(p *Publisher) { p.after = after }
}

func NewPublisher(out bus.Producer, l *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		out:         out,
		l:           l,
		maxAttempts: 3,
		delay:       time.Second,
		after:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Publish 立即返回；序列化失败直接丢弃并记录
func (p *Publisher) Publish(ctx context.Context, e domain.Event) {
	b, err := Encode(e)
	if err != nil {
		metrics.EventsFailed.WithLabelValues(e.Topic(), "serialization").Inc()
		p.l.Error("event dropped", zap.String("kind", string(e.Kind())), zap.Error(err))
		return
	}
	ctx = context.WithoutCancel(ctx)
	m := bus.Message{Topic: e.Topic(), Key: e.PartitionKey(), Value: b}

	if d, ok := e.(deduped); ok && p.dedup != nil && d.DedupKey() != "" {
		go func() {
			first, err := p.dedup.Claim(ctx, d.DedupKey())
			if err != nil {
				// 去重不可用时宁可重复也不丢
				p.l.Warn("dedup claim failed", zap.String("key", d.DedupKey()), zap.Error(err))
			} else if !first {
				p.l.Info("duplicate event skipped", zap.String("key", d.DedupKey()))
				return
			}
			p.attempt(ctx, e.Kind(), m, 1)
		}()
		return
	}
	p.attempt(ctx, e.Kind(), m, 1)
}

func (p *Publisher) attempt(ctx context.Context, kind domain.EventKind, m bus.Message, n int) {
	p.out.Send(ctx, m, func(err error) {
		if err == nil {
			metrics.EventsPublished.WithLabelValues(m.Topic).Inc()
			return
		}
		fields := []zap.Field{
			zap.String("topic", m.Topic), zap.String("key", m.Key),
			zap.String("kind", string(kind)), zap.Int("attempt", n), zap.Error(err),
		}
		if n >= p.maxAttempts {
			metrics.EventsFailed.WithLabelValues(m.Topic, "exhausted").Inc()
			p.l.Error("event dropped after retries", fields...)
			return
		}
		p.l.Warn("event send failed, retrying", fields...)
		p.after(p.delay, func() { p.attempt(ctx, kind, m, n+1) })
	})
}
