// Package user 登录、个人信息与会员管理接口
package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-lending/internal/core/auth"
	"library-lending/internal/domain"
	"library-lending/internal/service"
	"library-lending/internal/transport/http/ez"
	mdw "library-lending/internal/transport/http/middleware"
)

type Module struct {
	svc     *service.MembershipService
	sweeper *service.Sweeper // 仅 admin 进程需要
	jwter   *auth.JWTer
	l       *zap.Logger
}

func New(svc *service.MembershipService, sweeper *service.Sweeper, jwter *auth.JWTer, l *zap.Logger) *Module {
	return &Module{svc: svc, sweeper: sweeper, jwter: jwter, l: l}
}

func (m *Module) Priority() int { return 10 }

type loginIn struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginOut struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type membershipOut struct {
	UserID  int64  `json:"userId"`
	Status  string `json:"status"`
	EndDate string `json:"membershipEndDate"`
}

func (m *Module) MountAPI(api *gin.RouterGroup) {
	// 登录按 IP 单独限速
	public := ez.New(api.Group("/auth", mdw.RateLimitPerIP(5, 20)), m.l)
	ez.RegisterAction(public, ez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			u, err := m.svc.Authenticate(c.Request.Context(), in.Email, in.Password)
			if errors.Is(err, domain.ErrNotFound) {
				return loginOut{}, ez.Unauthorized("invalid credentials")
			}
			if err != nil {
				return loginOut{}, err
			}
			tok, err := m.jwter.Issue(u.ID, u.Role)
			if err != nil {
				return loginOut{}, ez.Internal("issue token failed", err)
			}
			return loginOut{Token: tok, User: u}, nil
		},
	})

	e := ez.New(api, m.l)
	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			uid, err := ez.UserID(c)
			if err != nil {
				return nil, err
			}
			return m.svc.GetUser(c.Request.Context(), uid)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, membershipOut]{
		Method: http.MethodGet,
		Path:   "/me/membership",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (membershipOut, error) {
			uid, err := ez.UserID(c)
			if err != nil {
				return membershipOut{}, err
			}
			return m.membership(c, uid)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, []domain.LoanRecord]{
		Method: http.MethodGet,
		Path:   "/me/loans",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.LoanRecord, error) {
			uid, err := ez.UserID(c)
			if err != nil {
				return nil, err
			}
			return m.svc.History(c.Request.Context(), uid)
		},
	})
}

type extendIn struct {
	Months int `json:"months" binding:"required,min=1"`
}

type sweepOut struct {
	Deactivated int `json:"deactivated"`
}

func (m *Module) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin, m.l)

	ez.RegisterAction(e, ez.Action[service.NewUser, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.NewUser) (*domain.User, error) {
			return m.svc.CreateUser(c.Request.Context(), *in)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.svc.GetUser(c.Request.Context(), id)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/:id/deactivate",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := m.svc.Deactivate(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id, "active": false}, nil
		},
	})
	ez.RegisterAction(e, ez.Action[extendIn, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users/:id/extend",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *extendIn) (*domain.User, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.svc.ExtendMembership(c.Request.Context(), id, in.Months)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, membershipOut]{
		Method: http.MethodGet,
		Path:   "/users/:id/membership",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (membershipOut, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return membershipOut{}, err
			}
			return m.membership(c, id)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, []domain.LoanRecord]{
		Method: http.MethodGet,
		Path:   "/users/:id/loans",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.LoanRecord, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.svc.History(c.Request.Context(), id)
		},
	})

	if m.sweeper == nil {
		return
	}
	ez.RegisterAction(e, ez.Action[struct{}, sweepOut]{
		Method: http.MethodPost,
		Path:   "/memberships/sweep",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (sweepOut, error) {
			n, err := m.sweeper.Sweep(c.Request.Context())
			if err != nil {
				return sweepOut{}, err
			}
			return sweepOut{Deactivated: n}, nil
		},
	})
}

func (m *Module) membership(c *gin.Context, id int64) (membershipOut, error) {
	status, err := m.svc.CheckMembership(c.Request.Context(), id)
	if err != nil {
		return membershipOut{}, err
	}
	u, err := m.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		return membershipOut{}, err
	}
	return membershipOut{UserID: id, Status: status, EndDate: u.MembershipEndDate.Format("2006-01-02")}, nil
}
