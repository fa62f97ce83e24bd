// Package repotest 提供基于内存 SQLite 的 gorm 实例，供各包测试使用
package repotest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library-lending/internal/domain"
	"library-lending/internal/repo"
)

var seq atomic.Int64

// NewDB 每次调用一个独立的内存库
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 单连接，避免 SQLite 写锁冲突
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(repo.Models()...))
	return db
}

// Today 测试里统一使用的“今天”
var Today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func Clock() time.Time { return Today.Add(9 * time.Hour) }

func SeedUser(t testing.TB, db *gorm.DB, email string, active bool, end time.Time) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:               email,
		Name:                strings.Split(email, "@")[0],
		Role:                "user",
		MembershipStartDate: end.AddDate(-1, 0, 0),
		MembershipEndDate:   end,
	}
	require.NoError(t, db.Create(u).Error)
	// gorm 对零值 bool 走默认值 true，这里显式更新
	if !active {
		require.NoError(t, db.Model(u).Update("active", false).Error)
	}
	u.Active = active
	return u
}

func SeedBook(t testing.TB, db *gorm.DB, title, category string, status domain.BookStatus, active bool) *domain.Book {
	t.Helper()
	b := &domain.Book{Title: title, Author: "Author of " + title, Category: category, Status: status}
	require.NoError(t, db.Create(b).Error)
	if !active {
		require.NoError(t, db.Model(b).Update("active", false).Error)
	}
	b.Active = active
	return b
}
