// Package app 两个进程共用的依赖装配
package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"library-lending/internal/bus"
	"library-lending/internal/core/auth"
	"library-lending/internal/core/cache"
	"library-lending/internal/core/config"
	"library-lending/internal/core/database"
	"library-lending/internal/domain"
	"library-lending/internal/event"
	"library-lending/internal/repo"
	"library-lending/internal/service"
)

type App struct {
	Cfg       *config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	Cache     *cache.Cache
	Bus       bus.Bus
	Publisher *event.Publisher
	JWT       *auth.JWTer
	Store     *repo.Store

	Catalog *service.CatalogService
	Lending *service.LendingService
	Members *service.MembershipService
	Reports *service.ReportService
	Sweeper *service.Sweeper
}

// New 连接 DB/Redis/总线并构造服务；任一步失败都会释放已打开的资源
func New(cfg *config.Config, l *zap.Logger) (a *App, err error) {
	a = &App{Cfg: cfg, Log: l}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.DB, err = database.NewGorm(cfg.DB, l)
	if err != nil {
		return a, err
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err = database.Migrate(a.DB, repo.Models()...); err != nil {
			return a, err
		}
		l.Info("automigrate done")
	}

	a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err = pingRedis(a.Cache.RDB); err != nil {
		return a, err
	}

	a.Bus, err = bus.Open(cfg.Bus, a.Cache.RDB, l)
	if err != nil {
		return a, err
	}
	a.Publisher = event.NewPublisher(a.Bus, l,
		event.WithRetry(cfg.Publisher.MaxAttempts, cfg.Publisher.RetryDelay),
		event.WithDeduper(event.NewRedisDeduper(a.Cache.RDB, cfg.Publisher.DedupTTL)),
	)

	a.JWT = &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	a.Store = repo.NewStore(a.DB)
	clock := domain.Clock(domain.SystemClock)
	a.Catalog = service.NewCatalogService(a.Store, a.Publisher, l)
	a.Lending = service.NewLendingService(a.Store, a.Publisher, a.Cache, clock, l, service.LendingOptions{
		LoanDays:     cfg.Lending.LoanDays,
		StatusEvents: cfg.Lending.StatusEvents,
	})
	a.Members = service.NewMembershipService(a.Store, a.Publisher, clock, l)
	a.Reports = service.NewReportService(a.Store, a.Cache, cfg.Report.CacheTTL)
	a.Sweeper = service.NewSweeper(a.Store, a.Publisher, clock, l)
	return a, nil
}

func pingRedis(rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return errors.Wrap(rdb.Ping(ctx).Err(), "redis ping")
}

// Close 先关总线（冲刷在途消息），再关 Redis 与 DB
func (a *App) Close() {
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("bus close", zap.Error(err))
		}
	}
	if a.Cache != nil {
		_ = a.Cache.RDB.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
