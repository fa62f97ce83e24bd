package domain

import (
	"context"
	"time"
)

// Repos 一次事务内可见的仓储集合
type Repos struct {
	Books BookRepository
	Users UserRepository
	Loans LoanRepository
}

// Store 提供事务边界；fn 返回错误则整体回滚
type Store interface {
	Repos(ctx context.Context) Repos
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// Clock 便于测试固定“今天”
type Clock func() time.Time

func SystemClock() time.Time { return time.Now() }

// DateOf 截断到 UTC 零点，库里所有 date 列都按这个口径存
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
