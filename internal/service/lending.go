package service

import (
	"context"

	"go.uber.org/zap"

	"library-lending/internal/domain"
)

type LendingOptions struct {
	LoanDays     int  // 0 不设应还日期
	StatusEvents bool // 借还后发 BOOK_STATUS_CHANGED
}

type LendingService struct {
	store domain.Store
	pub   Publisher
	cache Evictor
	clock domain.Clock
	l     *zap.Logger
	opt   LendingOptions
}

func NewLendingService(store domain.Store, pub Publisher, cache Evictor, clock domain.Clock, l *zap.Logger, opt LendingOptions) *LendingService {
	if pub == nil {
		pub = nopPublisher{}
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	return &LendingService{store: store, pub: pub, cache: cache, clock: clock, l: l, opt: opt}
}

// Borrow 借书：书置为 TAKEN 并新建借阅记录
func (s *LendingService) Borrow(ctx context.Context, userID, bookID int64) (*domain.LoanRecord, error) {
	today := domain.DateOf(s.clock())
	var (
		loan *domain.LoanRecord
		book *domain.Book
	)
	err := s.store.WithinTx(ctx, func(r domain.Repos) error {
		u, err := r.Users.FindByID(userID)
		if err != nil {
			return err
		}
		if u == nil {
			return domain.NotFoundf("user %d", userID)
		}
		book, err = r.Books.FindByIDForUpdate(bookID)
		if err != nil {
			return err
		}
		if book == nil {
			return domain.NotFoundf("book %d", bookID)
		}
		switch {
		case !u.Active:
			return domain.Conflictf("user %d is inactive", userID)
		case u.MembershipExpired(today):
			return domain.Conflictf("membership of user %d expired on %s", userID, u.MembershipEndDate.Format("2006-01-02"))
		case !book.Active:
			return domain.Conflictf("book %d is not active", bookID)
		case book.Status != domain.BookAvailable:
			return domain.Conflictf("book %d is %s", bookID, book.Status)
		}

		book.Status = domain.BookTaken
		if err := r.Books.Update(book); err != nil {
			return err
		}
		loan = &domain.LoanRecord{UserID: userID, BookID: bookID, TakenDate: today}
		if s.opt.LoanDays > 0 {
			due := today.AddDate(0, 0, s.opt.LoanDays)
			loan.DueDate = &due
		}
		return r.Loans.Create(loan)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, book)
	s.l.Info("book borrowed", zap.Int64("userId", userID), zap.Int64("bookId", bookID), zap.Int64("loanId", loan.ID))
	return loan, nil
}

// Return 还书；已归还的记录再次归还返回 Conflict
func (s *LendingService) Return(ctx context.Context, userID, loanID int64) (*domain.LoanRecord, error) {
	today := domain.DateOf(s.clock())
	var (
		loan *domain.LoanRecord
		book *domain.Book
	)
	err := s.store.WithinTx(ctx, func(r domain.Repos) error {
		var err error
		loan, err = r.Loans.FindByIDForUpdate(loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return domain.NotFoundf("loan %d", loanID)
		}
		if loan.UserID != userID {
			return domain.Conflictf("loan %d does not belong to user %d", loanID, userID)
		}
		if !loan.Open() {
			return domain.Conflictf("loan %d already returned on %s", loanID, loan.ReturnedDate.Format("2006-01-02"))
		}
		book, err = r.Books.FindByIDForUpdate(loan.BookID)
		if err != nil {
			return err
		}
		if book == nil {
			return domain.NotFoundf("book %d", loan.BookID)
		}
		if !book.Active {
			return domain.Conflictf("book %d is not active", book.ID)
		}

		book.Status = domain.BookAvailable
		if err := r.Books.Update(book); err != nil {
			return err
		}
		loan.ReturnedDate = &today
		return r.Loans.Update(loan)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, book)
	s.l.Info("book returned", zap.Int64("userId", userID), zap.Int64("bookId", book.ID), zap.Int64("loanId", loanID))
	return loan, nil
}

// afterCommit 失败只记日志，不影响借还结果
func (s *LendingService) afterCommit(ctx context.Context, book *domain.Book) {
	if s.cache != nil {
		if err := s.cache.Evict(ctx, ReportTopCategoriesKey); err != nil {
			s.l.Warn("evict report cache failed", zap.Error(err))
		}
	}
	if s.opt.StatusEvents {
		s.pub.Publish(ctx, domain.NewBookEvent(domain.BookStatusChanged, book))
	}
}
