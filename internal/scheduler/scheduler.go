// Package scheduler 每日定时任务，跨实例用 Redis 租约保证同一周期只跑一次。
package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Job func(ctx context.Context) error

type Scheduler struct {
	s   gocron.Scheduler
	loc *time.Location
	l   *zap.Logger
}

// New locker 可为 nil（单实例）
func New(timezone string, locker gocron.Locker, l *zap.Logger) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, errors.Wrapf(err, "load timezone %s", timezone)
		}
	}
	opts := []gocron.SchedulerOption{
		gocron.WithLocation(loc),
		gocron.WithLogger(zapLogger{l.Sugar()}),
	}
	if locker != nil {
		opts = append(opts, gocron.WithDistributedLocker(locker))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "new scheduler")
	}
	return &Scheduler{s: s, loc: loc, l: l}, nil
}

// Daily 每天 at（"HH:MM"）执行一次；上一次未结束则顺延
func (s *Scheduler) Daily(ctx context.Context, name, at string, job Job) (gocron.Job, error) {
	h, m, err := ParseAt(at)
	if err != nil {
		return nil, err
	}
	j, err := s.s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(h, m, 0))),
		gocron.NewTask(func() {
			start := time.Now()
			if err := job(ctx); err != nil {
				s.l.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
				return
			}
			s.l.Info("scheduled job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "schedule %s", name)
	}
	return j, nil
}

func (s *Scheduler) Start() { s.s.Start() }

// Run 启动并阻塞到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) error {
	s.s.Start()
	<-ctx.Done()
	return s.s.Shutdown()
}

func (s *Scheduler) Shutdown() error { return s.s.Shutdown() }

func ParseAt(at string) (uint, uint, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(at), ":")
	if !ok {
		return 0, 0, errors.Errorf("invalid time %q, want HH:MM", at)
	}
	h, err1 := strconv.ParseUint(hh, 10, 8)
	m, err2 := strconv.ParseUint(mm, 10, 8)
	if err1 != nil || err2 != nil || h > 23 || m > 59 {
		return 0, 0, errors.Errorf("invalid time %q, want HH:MM", at)
	}
	return uint(h), uint(m), nil
}

type zapLogger struct{ l *zap.SugaredLogger }

func (z zapLogger) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z zapLogger) Info(msg string, args ...any)  { z.l.Infow(msg, args...) }
func (z zapLogger) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
func (z zapLogger) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }
