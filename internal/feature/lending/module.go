// Package lending 借书与还书接口，只对登录会员开放
package lending

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-lending/internal/domain"
	"library-lending/internal/service"
	"library-lending/internal/transport/http/ez"
)

type Module struct {
	svc *service.LendingService
	l   *zap.Logger
}

func New(svc *service.LendingService, l *zap.Logger) *Module { return &Module{svc: svc, l: l} }

type borrowIn struct {
	BookID int64 `json:"bookId" binding:"required,min=1"`
}

func (m *Module) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api, m.l)

	ez.RegisterAction(e, ez.Action[borrowIn, *domain.LoanRecord]{
		Method: http.MethodPost,
		Path:   "/loans",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *borrowIn) (*domain.LoanRecord, error) {
			uid, err := ez.UserID(c)
			if err != nil {
				return nil, err
			}
			return m.svc.Borrow(c.Request.Context(), uid, in.BookID)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, *domain.LoanRecord]{
		Method: http.MethodPost,
		Path:   "/loans/:id/return",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.LoanRecord, error) {
			uid, err := ez.UserID(c)
			if err != nil {
				return nil, err
			}
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.svc.Return(c.Request.Context(), uid, id)
		},
	})
}
