package domain

import "time"

// LoanRecord 借阅记录：借出时创建，归还时写一次 ReturnedDate，永不删除
type LoanRecord struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64      `gorm:"index;not null" json:"userId"`
	BookID       int64      `gorm:"index;not null" json:"bookId"`
	TakenDate    time.Time  `gorm:"type:date;not null;index" json:"takenDate"`
	DueDate      *time.Time `gorm:"type:date" json:"dueDate,omitempty"`
	ReturnedDate *time.Time `gorm:"type:date;index" json:"returnedDate"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (LoanRecord) TableName() string { return "loan_records" }

func (l *LoanRecord) Open() bool { return l.ReturnedDate == nil }

type CategoryCount struct {
	Category string
	Count    int64
}

type LoanRepository interface {
	Create(l *LoanRecord) error
	FindByID(id int64) (*LoanRecord, error)
	FindByIDForUpdate(id int64) (*LoanRecord, error)
	CountOpenByBook(bookID int64) (int64, error)
	ListByUser(userID int64) ([]LoanRecord, error)
	Update(l *LoanRecord) error
	CategoryCounts() ([]CategoryCount, error)
}
