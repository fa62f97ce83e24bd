// Package mail 邮件投递：单封重试，批量按块发送，全部异步。
package mail

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-lending/internal/domain"
	"library-lending/internal/metrics"
)

// Message 单次 SMTP 投递；批量时收件人放 Bcc
type Message struct {
	To      []string
	Bcc     []string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Executor 提交后台任务，*pool.Pool 即可满足
type Executor interface {
	Go(func())
}

// Inline 在当前 goroutine 执行
type Inline struct{}

func (Inline) Go(f func()) { f() }

type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	ChunkSize   int
}

type Service struct {
	s    Sender
	exec Executor
	l    *zap.Logger
	opt  Options
}

func NewService(s Sender, exec Executor, l *zap.Logger, opt Options) *Service {
	if opt.MaxAttempts < 1 {
		opt.MaxAttempts = 3
	}
	if opt.RetryDelay < 0 {
		opt.RetryDelay = 2 * time.Second
	}
	if opt.ChunkSize < 1 {
		opt.ChunkSize = 100
	}
	return &Service{s: s, exec: exec, l: l, opt: opt}
}

// SendOne 后台发送，最多 MaxAttempts 次，间隔固定；失败只记日志
func (s *Service) SendOne(ctx context.Context, to, subject, body string) {
	ctx = context.WithoutCancel(ctx)
	s.exec.Go(func() {
		attempt := 0
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			attempt++
			err := s.s.Send(ctx, Message{To: []string{to}, Subject: subject, Body: body})
			if err != nil {
				s.l.Warn("mail send failed", zap.String("to", to), zap.Int("attempt", attempt), zap.Error(err))
			}
			return struct{}{}, err
		},
			backoff.WithBackOff(backoff.NewConstantBackOff(s.opt.RetryDelay)),
			backoff.WithMaxTries(uint(s.opt.MaxAttempts)),
		)
		if err != nil {
			metrics.EmailsSent.WithLabelValues("single", "failed").Inc()
			s.l.Error("mail given up", zap.String("to", to), zap.String("subject", subject),
				zap.Error(errors.Wrap(domain.ErrTransientDelivery, err.Error())))
			return
		}
		metrics.EmailsSent.WithLabelValues("single", "ok").Inc()
	})
}

// SendBulk 按 ChunkSize 切块，每块一次投递且不重试；单块失败不影响其他块
func (s *Service) SendBulk(ctx context.Context, to []string, subject, body string) {
	ctx = context.WithoutCancel(ctx)
	for i, chunk := range Chunks(to, s.opt.ChunkSize) {
		s.exec.Go(func() {
			if err := s.s.Send(ctx, Message{Bcc: chunk, Subject: subject, Body: body}); err != nil {
				metrics.EmailsSent.WithLabelValues("bulk", "failed").Inc()
				s.l.Error("bulk mail chunk failed", zap.Int("chunk", i), zap.Int("recipients", len(chunk)),
					zap.String("subject", subject), zap.Error(err))
				return
			}
			metrics.EmailsSent.WithLabelValues("bulk", "ok").Inc()
		})
	}
}

func Chunks(xs []string, size int) [][]string {
	var out [][]string
	for size < len(xs) {
		xs, out = xs[size:], append(out, xs[:size:size])
	}
	if len(xs) > 0 {
		out = append(out, xs)
	}
	return out
}
