package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"library-lending/internal/app"
	"library-lending/internal/core/config"
	"library-lending/internal/core/logger"
	"library-lending/internal/core/server"
	"library-lending/internal/feature/catalog"
	"library-lending/internal/feature/lending"
	"library-lending/internal/feature/user"
	"library-lending/internal/live"
	"library-lending/internal/mail"
	"library-lending/internal/notify"
	"library-lending/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log)()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 在线推送与邮件；推送注册表在内存里，所以消费者跑在这个进程
	reg := live.NewRegistry(log)
	workers := pool.New().WithMaxGoroutines(cfg.Mail.Workers)
	mailer := mail.NewService(mail.NewSMTP(cfg.Mail), workers, log, mail.Options{
		MaxAttempts: cfg.Mail.MaxAttempts,
		RetryDelay:  cfg.Mail.RetryDelay,
		ChunkSize:   cfg.Mail.ChunkSize,
	})
	disp := notify.NewDispatcher(notify.StorePager{Store: a.Store}, mailer, reg, log, notify.Options{
		PageSize:        cfg.Notify.PageSize,
		Concurrency:     cfg.Notify.Concurrency,
		PushConcurrency: cfg.Notify.PushConcurrency,
		BookGroup:       cfg.Notify.BookGroup,
		MembershipGroup: cfg.Notify.MembershipGroup,
	})

	// 路由（用户端）
	mods := router.NewRegistry(
		user.New(a.Members, nil, a.JWT, log),
		catalog.New(a.Catalog, log),
		lending.New(a.Lending, log),
	)
	r := router.NewAPIEngine(log, a.JWT, mods, live.Handler(reg, log))

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("user api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
		zap.String("ws", "ws://"+host4human+":"+fmt.Sprint(cfg.App.HTTP.Port)+"/ws/notifications?userId="),
		zap.String("bus", cfg.Bus.Driver),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := disp.Run(gctx, a.Bus); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "notification consumers")
		}
		return nil
	})
	g.Go(func() error {
		if err := server.StartHTTP(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("user api stopped with error", zap.Error(err))
	}
	// 等在途邮件发完
	workers.Wait()
	log.Info("user api stopped gracefully")
}
