package domain

import "time"

type BookStatus string

const (
	BookAvailable BookStatus = "AVAILABLE"
	BookTaken     BookStatus = "TAKEN"
)

func (s BookStatus) Valid() bool { return s == BookAvailable || s == BookTaken }

type Book struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Author    string     `gorm:"size:255;not null;index" json:"author"`
	Category  string     `gorm:"size:64;not null;index" json:"category"`
	Status    BookStatus `gorm:"size:16;not null;default:AVAILABLE" json:"status"`
	Active    bool       `gorm:"index;not null;default:true" json:"active"`
	ImageURL  string     `gorm:"size:512" json:"imageUrl,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Book) TableName() string { return "books" }

type BookFilter struct {
	Category string
	Author   string
	Title    string // 模糊匹配
	Status   BookStatus
}

type BookRepository interface {
	Create(b *Book) error
	FindByID(id int64) (*Book, error)
	FindByIDForUpdate(id int64) (*Book, error)
	List(f BookFilter) ([]Book, error)
	Update(b *Book) error
}
