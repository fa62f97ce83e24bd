package domain

import (
	"strconv"
	"time"
)

type EventKind string

const (
	BookAdded         EventKind = "BOOK_ADDED"
	BookUpdated       EventKind = "BOOK_UPDATED"
	BookStatusChanged EventKind = "BOOK_STATUS_CHANGED"
	BookDeleted       EventKind = "BOOK_DELETED"
	MembershipExpired EventKind = "MEMBERSHIP_EXPIRED"
)

const (
	TopicBookEvents        = "book.events"
	TopicMembershipExpired = "membership.expired"
)

const dateLayout = "2006-01-02"

// Event 领域事件；发布后不可变。PartitionKey 决定总线上的顺序域
type Event interface {
	Kind() EventKind
	Topic() string
	PartitionKey() string
}

// BookEvent 对应 book.events 的 JSON 载荷
type BookEvent struct {
	EventType EventKind  `json:"eventType"`
	BookID    int64      `json:"bookId"`
	Title     string     `json:"title"`
	Author    string     `json:"author"`
	Category  string     `json:"category"`
	Status    BookStatus `json:"status"`
}

func NewBookEvent(kind EventKind, b *Book) *BookEvent {
	return &BookEvent{
		EventType: kind,
		BookID:    b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Category:  b.Category,
		Status:    b.Status,
	}
}

func (e *BookEvent) Kind() EventKind      { return e.EventType }
func (e *BookEvent) Topic() string        { return TopicBookEvents }
func (e *BookEvent) PartitionKey() string { return strconv.FormatInt(e.BookID, 10) }

// MembershipExpiredEvent 对应 membership.expired 的载荷
type MembershipExpiredEvent struct {
	UserID            int64  `json:"userId"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	MembershipEndDate string `json:"membershipEndDate"`
	Reason            string `json:"reason"`

	// 去重键不上总线
	dedupKey string
}

func NewMembershipExpiredEvent(u *User) *MembershipExpiredEvent {
	return &MembershipExpiredEvent{
		UserID:            u.ID,
		Email:             u.Email,
		Name:              u.Name,
		MembershipEndDate: u.MembershipEndDate.Format(dateLayout),
		Reason:            string(MembershipExpired),
	}
}

// WithDedupKey 以 userId + 日期 作为跨实例去重键
func (e *MembershipExpiredEvent) WithDedupKey(day time.Time) *MembershipExpiredEvent {
	e.dedupKey = e.PartitionKey() + ":" + e.MembershipEndDate + ":" + day.Format(dateLayout)
	return e
}

func (e *MembershipExpiredEvent) DedupKey() string     { return e.dedupKey }
func (e *MembershipExpiredEvent) Kind() EventKind      { return MembershipExpired }
func (e *MembershipExpiredEvent) Topic() string        { return TopicMembershipExpired }
func (e *MembershipExpiredEvent) PartitionKey() string { return strconv.FormatInt(e.UserID, 10) }
