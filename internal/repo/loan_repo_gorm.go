package repo

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-lending/internal/domain"
)

type LoanRepo struct{ db *gorm.DB }

func NewLoanRepo(db *gorm.DB) *LoanRepo { return &LoanRepo{db: db} }

func (r *LoanRepo) Create(l *domain.LoanRecord) error {
	return errors.Wrap(r.db.Omit(clause.Associations).Create(l).Error, "create loan record")
}

func (r *LoanRepo) FindByID(id int64) (*domain.LoanRecord, error) {
	return r.first(r.db, id)
}

func (r *LoanRepo) FindByIDForUpdate(id int64) (*domain.LoanRecord, error) {
	return r.first(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *LoanRepo) first(db *gorm.DB, id int64) (*domain.LoanRecord, error) {
	var l domain.LoanRecord
	err := db.Where("id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find loan record %d", id)
	}
	return &l, nil
}

func (r *LoanRepo) CountOpenByBook(bookID int64) (int64, error) {
	var n int64
	err := r.db.Model(&domain.LoanRecord{}).
		Where("book_id = ? AND returned_date IS NULL", bookID).
		Count(&n).Error
	return n, errors.Wrap(err, "count open loans")
}

func (r *LoanRepo) ListByUser(userID int64) ([]domain.LoanRecord, error) {
	var out []domain.LoanRecord
	err := r.db.Preload("Book").
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&out).Error
	return out, errors.Wrap(err, "list loans by user")
}

func (r *LoanRepo) Update(l *domain.LoanRecord) error {
	return errors.Wrap(r.db.Omit(clause.Associations).Save(l).Error, "update loan record")
}

// CategoryCounts 按图书分类统计借阅次数，降序
func (r *LoanRepo) CategoryCounts() ([]domain.CategoryCount, error) {
	var rows []domain.CategoryCount
	err := r.db.Model(&domain.LoanRecord{}).
		Select("books.category AS category, COUNT(*) AS count").
		Joins("JOIN books ON books.id = loan_records.book_id").
		Group("books.category").
		Order("count DESC").
		Scan(&rows).Error
	return rows, errors.Wrap(err, "category counts")
}
