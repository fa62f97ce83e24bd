package repo

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-lending/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(u *domain.User) error {
	return errors.Wrap(r.db.Create(u).Error, "create user")
}

func (r *UserRepo) FindByID(id int64) (*domain.User, error) {
	return r.first(r.db, "id = ?", id)
}

func (r *UserRepo) FindByIDForUpdate(id int64) (*domain.User, error) {
	return r.first(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *UserRepo) FindByEmail(email string) (*domain.User, error) {
	return r.first(r.db, "email = ?", email)
}

// 查不到返回 (nil, nil)
func (r *UserRepo) first(db *gorm.DB, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := db.Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &u, nil
}

func (r *UserRepo) ListActive() ([]domain.User, error) {
	var users []domain.User
	if err := r.db.Where("active = ?", true).Order("id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list active users")
	}
	return users, nil
}

func (r *UserRepo) PageActive(page, size int) ([]domain.User, error) {
	var users []domain.User
	err := r.db.Where("active = ?", true).
		Order("id").
		Offset(page * size).
		Limit(size).
		Find(&users).Error
	if err != nil {
		return nil, errors.Wrapf(err, "page active users (page=%d)", page)
	}
	return users, nil
}

// DeactivateExpired 条件更新，不回写扫描时读到的整行，避免覆盖并发的续期
func (r *UserRepo) DeactivateExpired(id int64, today time.Time) (bool, error) {
	res := r.db.Model(&domain.User{}).
		Where("id = ? AND active = ? AND membership_end_date < ?", id, true, domain.DateOf(today)).
		Update("active", false)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "deactivate user %d", id)
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepo) Update(u *domain.User) error {
	return errors.Wrap(r.db.Save(u).Error, "update user")
}
