// Package catalog 图书浏览与馆员维护接口
package catalog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-lending/internal/domain"
	"library-lending/internal/service"
	"library-lending/internal/transport/http/ez"
)

type Module struct {
	svc *service.CatalogService
	l   *zap.Logger
}

func New(svc *service.CatalogService, l *zap.Logger) *Module { return &Module{svc: svc, l: l} }

type listIn struct {
	Category string `form:"category"`
	Author   string `form:"author"`
	Title    string `form:"title"`
	Status   string `form:"status"`
}

func (in *listIn) filter() domain.BookFilter {
	return domain.BookFilter{
		Category: strings.TrimSpace(in.Category),
		Author:   strings.TrimSpace(in.Author),
		Title:    strings.TrimSpace(in.Title),
		Status:   domain.BookStatus(strings.ToUpper(strings.TrimSpace(in.Status))),
	}
}

type statusIn struct {
	Status string `json:"status" binding:"required"`
}

func (m *Module) MountAPI(api *gin.RouterGroup) {
	m.mountBrowse(ez.New(api, m.l))
}

func (m *Module) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin, m.l)
	m.mountBrowse(e)

	ez.RegisterAction(e, ez.Action[service.NewBook, *domain.Book]{
		Method: http.MethodPost,
		Path:   "/books",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.NewBook) (*domain.Book, error) {
			return m.svc.AddBook(c.Request.Context(), *in)
		},
	})
	ez.RegisterAction(e, ez.Action[service.BookPatch, *domain.Book]{
		Method: http.MethodPut,
		Path:   "/books/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.BookPatch) (*domain.Book, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.svc.UpdateBook(c.Request.Context(), id, *in)
		},
	})
	ez.RegisterAction(e, ez.Action[statusIn, *domain.Book]{
		Method: http.MethodPatch,
		Path:   "/books/:id/status",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *statusIn) (*domain.Book, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			status := domain.BookStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
			return m.svc.UpdateStatus(c.Request.Context(), id, status)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/books/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := m.svc.DeleteBook(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id, "active": false}, nil
		},
	})
}

func (m *Module) mountBrowse(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[listIn, []domain.Book]{
		Method: http.MethodGet,
		Path:   "/books",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *listIn) ([]domain.Book, error) {
			return m.svc.ListBooks(c.Request.Context(), in.filter())
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, *domain.Book]{
		Method: http.MethodGet,
		Path:   "/books/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Book, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.svc.GetBook(c.Request.Context(), id)
		},
	})
}
