package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"library-lending/internal/domain"
	"library-lending/pkg/utils"
)

const (
	MembershipActive  = "active"
	MembershipExpired = "expired"
)

type NewUser struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
	Months   int    `json:"months"`
}

type MembershipService struct {
	store domain.Store
	pub   Publisher
	clock domain.Clock
	l     *zap.Logger
}

func NewMembershipService(store domain.Store, pub Publisher, clock domain.Clock, l *zap.Logger) *MembershipService {
	if pub == nil {
		pub = nopPublisher{}
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	return &MembershipService{store: store, pub: pub, clock: clock, l: l}
}

// CreateUser 会员从今天开始，默认 12 个月
func (s *MembershipService) CreateUser(ctx context.Context, in NewUser) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || strings.TrimSpace(in.Name) == "" || in.Password == "" {
		return nil, domain.Invalidf("email, name and password are required")
	}
	months := in.Months
	if months <= 0 {
		months = 12
	}
	role := in.Role
	if role == "" {
		role = "user"
	}
	if role != "user" && role != "admin" {
		return nil, domain.Invalidf("unknown role %q", role)
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	today := domain.DateOf(s.clock())
	u := &domain.User{
		Email:               email,
		Name:                strings.TrimSpace(in.Name),
		PasswordHash:        hash,
		Role:                role,
		Active:              true,
		MembershipStartDate: today,
		MembershipEndDate:   today.AddDate(0, months, 0),
	}
	err = s.store.WithinTx(ctx, func(r domain.Repos) error {
		dup, err := r.Users.FindByEmail(email)
		if err != nil {
			return err
		}
		if dup != nil {
			return domain.Conflictf("email %s already registered", email)
		}
		return r.Users.Create(u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate 用户不存在、已停用或密码错误都返回 NotFound
func (s *MembershipService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.store.Repos(ctx).Users.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u == nil || !u.Active || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.NotFoundf("invalid credentials")
	}
	return u, nil
}

func (s *MembershipService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.store.Repos(ctx).Users.FindByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NotFoundf("user %d", id)
	}
	return u, nil
}

// CheckMembership 过期时发送 MEMBERSHIP_EXPIRED，但不停用用户（停用由扫描完成）
func (s *MembershipService) CheckMembership(ctx context.Context, id int64) (string, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	if !u.Active {
		return "", domain.Conflictf("user %d is inactive", id)
	}
	if u.MembershipExpired(s.clock()) {
		s.pub.Publish(ctx, domain.NewMembershipExpiredEvent(u))
		return MembershipExpired, nil
	}
	return MembershipActive, nil
}

// ExtendMembership 从原到期日与今天中较晚者起顺延
func (s *MembershipService) ExtendMembership(ctx context.Context, id int64, months int) (*domain.User, error) {
	if months < 1 {
		return nil, domain.Invalidf("months must be >= 1")
	}
	today := domain.DateOf(s.clock())
	var u *domain.User
	err := s.store.WithinTx(ctx, func(r domain.Repos) error {
		var err error
		u, err = r.Users.FindByIDForUpdate(id)
		if err != nil {
			return err
		}
		if u == nil {
			return domain.NotFoundf("user %d", id)
		}
		if !u.Active {
			return domain.Conflictf("user %d is inactive", id)
		}
		from := domain.DateOf(u.MembershipEndDate)
		if from.Before(today) {
			from = today
		}
		u.MembershipEndDate = from.AddDate(0, months, 0)
		return r.Users.Update(u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *MembershipService) Deactivate(ctx context.Context, id int64) error {
	return s.store.WithinTx(ctx, func(r domain.Repos) error {
		u, err := r.Users.FindByIDForUpdate(id)
		if err != nil {
			return err
		}
		if u == nil {
			return domain.NotFoundf("user %d", id)
		}
		if !u.Active {
			return nil
		}
		u.Active = false
		return r.Users.Update(u)
	})
}

// History 借阅记录，新的在前
func (s *MembershipService) History(ctx context.Context, id int64) ([]domain.LoanRecord, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Repos(ctx).Loans.ListByUser(id)
}
