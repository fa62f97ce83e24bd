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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"library-lending/internal/app"
	"library-lending/internal/core/config"
	"library-lending/internal/core/logger"
	"library-lending/internal/core/server"
	"library-lending/internal/feature/catalog"
	"library-lending/internal/feature/report"
	"library-lending/internal/feature/user"
	"library-lending/internal/scheduler"
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

	// 路由（后台端）
	mods := router.NewRegistry(
		user.New(a.Members, a.Sweeper, a.JWT, log),
		catalog.New(a.Catalog, log),
		report.New(a.Reports, log),
	)
	r := router.NewAdminEngine(log, a.JWT, mods)

	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, r, 5*time.Second, 70*time.Second, 60*time.Second)

	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Sweeper.Enabled {
		sched, err := scheduler.New(cfg.Sweeper.Timezone, scheduler.NewRedisLocker(a.Cache.RDB, cfg.Sweeper.LockTTL), log)
		if err != nil {
			log.Fatal("scheduler init failed", zap.Error(err))
		}
		_, err = sched.Daily(gctx, "membership-expiry-sweep", cfg.Sweeper.At, func(ctx context.Context) error {
			n, err := a.Sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			log.Info("membership sweep finished", zap.Int("deactivated", n))
			return nil
		})
		if err != nil {
			log.Fatal("schedule sweep failed", zap.Error(err))
		}
		log.Info("membership sweeper scheduled",
			zap.String("at", cfg.Sweeper.At),
			zap.String("tz", cfg.Sweeper.Timezone),
			zap.Duration("lease", cfg.Sweeper.LockTTL),
		)
		g.Go(func() error { return sched.Run(gctx) })
	}
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
		log.Error("admin api stopped with error", zap.Error(err))
	}
	log.Info("admin api stopped gracefully")
}
