package notify

import (
	"fmt"

	"library-lending/internal/domain"
)

// Content 一次通知在各渠道的文案
type Content struct {
	Subject string
	Body    string
	Push    string
}

type bookTemplate func(e *domain.BookEvent) Content

var bookTemplates = map[domain.EventKind]bookTemplate{
	domain.BookAdded: func(e *domain.BookEvent) Content {
		return Content{
			Subject: fmt.Sprintf("New Book Added: %s", e.Title),
			Body: fmt.Sprintf("A new book has been added to the library!\n\nTitle: %s\nAuthor: %s\nCategory: %s\n\nCheck it out in your library account.",
				e.Title, e.Author, e.Category),
			Push: fmt.Sprintf("New book added: %s", e.Title),
		}
	},
	domain.BookUpdated: func(e *domain.BookEvent) Content {
		return Content{
			Subject: fmt.Sprintf("Book Updated: %s", e.Title),
			Body: fmt.Sprintf("The book details have been updated.\n\nTitle: %s\nAuthor: %s\nCategory: %s\nStatus: %s",
				e.Title, e.Author, e.Category, e.Status),
			Push: fmt.Sprintf("Book updated: %s", e.Title),
		}
	},
	domain.BookStatusChanged: func(e *domain.BookEvent) Content {
		return Content{
			Subject: fmt.Sprintf("Book Status Changed: %s", e.Title),
			Body:    fmt.Sprintf("The status of book '%s' has been changed to: %s", e.Title, e.Status),
			Push:    fmt.Sprintf("Book status changed: %s", e.Title),
		}
	},
	domain.BookDeleted: func(e *domain.BookEvent) Content {
		return Content{
			Subject: fmt.Sprintf("Book Deleted: %s", e.Title),
			Body:    fmt.Sprintf("The book '%s' has been removed from the library collection.", e.Title),
			Push:    fmt.Sprintf("Book deleted: %s", e.Title),
		}
	},
}

// BookContent 未知类型返回 false
func BookContent(e *domain.BookEvent) (Content, bool) {
	t, ok := bookTemplates[e.EventType]
	if !ok {
		return Content{}, false
	}
	return t(e), true
}

func MembershipContent(e *domain.MembershipExpiredEvent) Content {
	return Content{
		Subject: "Your Library Membership has expired",
		Body: fmt.Sprintf("Hi %s,\n\nYour library membership expired on %s. Please renew to continue borrowing books.\n\nRegards,\nLibrary Team",
			e.Name, e.MembershipEndDate),
	}
}
