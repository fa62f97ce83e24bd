package domain

import "time"

type User struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email               string    `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Name                string    `gorm:"size:64;not null" json:"name"`
	PasswordHash        string    `gorm:"size:191" json:"-"`
	Role                string    `gorm:"size:16;not null;default:user" json:"role"` // "user"/"admin"
	Active              bool      `gorm:"index;not null;default:true" json:"active"`
	MembershipStartDate time.Time `gorm:"type:date" json:"membershipStartDate"`
	MembershipEndDate   time.Time `gorm:"type:date;index" json:"membershipEndDate"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// MembershipExpired 会员到期日早于 today 即视为过期（当天仍有效）
func (u *User) MembershipExpired(today time.Time) bool {
	return DateOf(u.MembershipEndDate).Before(DateOf(today))
}

type UserRepository interface {
	Create(u *User) error
	FindByID(id int64) (*User, error)
	FindByIDForUpdate(id int64) (*User, error)
	FindByEmail(email string) (*User, error)
	// ListActive 返回全部 active 用户（过期扫描用）
	ListActive() ([]User, error)
	// PageActive 按 id 升序分页，page 从 0 开始
	PageActive(page, size int) ([]User, error)
	// DeactivateExpired 仅当用户仍 active 且到期日早于 today 时停用，返回是否真的改了
	DeactivateExpired(id int64, today time.Time) (bool, error)
	Update(u *User) error
}
