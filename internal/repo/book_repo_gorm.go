package repo

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-lending/internal/domain"
)

type BookRepo struct{ db *gorm.DB }

func NewBookRepo(db *gorm.DB) *BookRepo { return &BookRepo{db: db} }

func (r *BookRepo) Create(b *domain.Book) error {
	return errors.Wrap(r.db.Create(b).Error, "create book")
}

func (r *BookRepo) FindByID(id int64) (*domain.Book, error) {
	return r.first(r.db, id)
}

func (r *BookRepo) FindByIDForUpdate(id int64) (*domain.Book, error) {
	return r.first(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *BookRepo) first(db *gorm.DB, id int64) (*domain.Book, error) {
	var b domain.Book
	err := db.Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find book %d", id)
	}
	return &b, nil
}

// List 只返回 active 的书
func (r *BookRepo) List(f domain.BookFilter) ([]domain.Book, error) {
	q := r.db.Model(&domain.Book{}).Where("active = ?", true)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Author != "" {
		q = q.Where("author = ?", f.Author)
	}
	if s := strings.TrimSpace(f.Title); s != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var books []domain.Book
	if err := q.Order("id").Find(&books).Error; err != nil {
		return nil, errors.Wrap(err, "list books")
	}
	return books, nil
}

func (r *BookRepo) Update(b *domain.Book) error {
	return errors.Wrap(r.db.Save(b).Error, "update book")
}
