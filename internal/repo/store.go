package repo

import (
	"context"

	"gorm.io/gorm"

	"library-lending/internal/domain"
)

// Store 基于 gorm 的事务边界
type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func reposOf(db *gorm.DB) domain.Repos {
	return domain.Repos{
		Books: NewBookRepo(db),
		Users: NewUserRepo(db),
		Loans: NewLoanRepo(db),
	}
}

func (s *Store) Repos(ctx context.Context) domain.Repos {
	return reposOf(s.db.WithContext(ctx))
}

func (s *Store) WithinTx(ctx context.Context, fn func(r domain.Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposOf(tx))
	})
}

// Models 需要自动迁移的表
func Models() []any {
	return []any{&domain.User{}, &domain.Book{}, &domain.LoanRecord{}}
}
