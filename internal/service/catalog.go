package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"library-lending/internal/domain"
)

type NewBook struct {
	Title    string `json:"title" binding:"required"`
	Author   string `json:"author" binding:"required"`
	Category string `json:"category" binding:"required"`
	ImageURL string `json:"imageUrl"`
}

// BookPatch nil 字段不修改
type BookPatch struct {
	Title    *string `json:"title"`
	Author   *string `json:"author"`
	Category *string `json:"category"`
	ImageURL *string `json:"imageUrl"`
}

type CatalogService struct {
	store domain.Store
	pub   Publisher
	l     *zap.Logger
}

func NewCatalogService(store domain.Store, pub Publisher, l *zap.Logger) *CatalogService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &CatalogService{store: store, pub: pub, l: l}
}

func (s *CatalogService) AddBook(ctx context.Context, in NewBook) (*domain.Book, error) {
	b := &domain.Book{
		Title:    strings.TrimSpace(in.Title),
		Author:   strings.TrimSpace(in.Author),
		Category: strings.TrimSpace(in.Category),
		ImageURL: in.ImageURL,
		Status:   domain.BookAvailable,
		Active:   true,
	}
	if b.Title == "" || b.Author == "" || b.Category == "" {
		return nil, domain.Invalidf("title, author and category are required")
	}
	if err := s.store.Repos(ctx).Books.Create(b); err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, domain.NewBookEvent(domain.BookAdded, b))
	return b, nil
}

func (s *CatalogService) UpdateBook(ctx context.Context, id int64, p BookPatch) (*domain.Book, error) {
	b, err := s.mutate(ctx, id, func(_ domain.Repos, b *domain.Book) error {
		for _, f := range []struct {
			dst *string
			src *string
		}{{&b.Title, p.Title}, {&b.Author, p.Author}, {&b.Category, p.Category}} {
			if f.src == nil {
				continue
			}
			v := strings.TrimSpace(*f.src)
			if v == "" {
				return domain.Invalidf("title, author and category cannot be blank")
			}
			*f.dst = v
		}
		if p.ImageURL != nil {
			b.ImageURL = *p.ImageURL
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, domain.NewBookEvent(domain.BookUpdated, b))
	return b, nil
}

func (s *CatalogService) UpdateStatus(ctx context.Context, id int64, status domain.BookStatus) (*domain.Book, error) {
	if !status.Valid() {
		return nil, domain.Invalidf("unknown status %q", status)
	}
	b, err := s.mutate(ctx, id, func(r domain.Repos, b *domain.Book) error {
		// TAKEN 当且仅当存在一条未归还记录，手工改状态不能打破它
		open, err := r.Loans.CountOpenByBook(b.ID)
		if err != nil {
			return err
		}
		switch {
		case status == domain.BookAvailable && open > 0:
			return domain.Conflictf("book %d has an open loan", b.ID)
		case status == domain.BookTaken && open == 0:
			return domain.Conflictf("book %d has no open loan, borrow it instead", b.ID)
		}
		b.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, domain.NewBookEvent(domain.BookStatusChanged, b))
	return b, nil
}

// DeleteBook 软删除；借阅记录保留
func (s *CatalogService) DeleteBook(ctx context.Context, id int64) error {
	b, err := s.mutate(ctx, id, func(_ domain.Repos, b *domain.Book) error {
		b.Active = false
		return nil
	})
	if err != nil {
		return err
	}
	s.pub.Publish(ctx, domain.NewBookEvent(domain.BookDeleted, b))
	return nil
}

func (s *CatalogService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	b, err := s.store.Repos(ctx).Books.FindByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil || !b.Active {
		return nil, domain.NotFoundf("book %d", id)
	}
	return b, nil
}

func (s *CatalogService) ListBooks(ctx context.Context, f domain.BookFilter) ([]domain.Book, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Invalidf("unknown status %q", f.Status)
	}
	return s.store.Repos(ctx).Books.List(f)
}

// mutate 锁行修改一本在架的书
func (s *CatalogService) mutate(ctx context.Context, id int64, fn func(r domain.Repos, b *domain.Book) error) (*domain.Book, error) {
	var b *domain.Book
	err := s.store.WithinTx(ctx, func(r domain.Repos) error {
		var err error
		b, err = r.Books.FindByIDForUpdate(id)
		if err != nil {
			return err
		}
		if b == nil || !b.Active {
			return domain.NotFoundf("book %d", id)
		}
		if err := fn(r, b); err != nil {
			return err
		}
		return r.Books.Update(b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
