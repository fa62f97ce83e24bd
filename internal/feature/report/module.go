// Package report 馆员报表
package report

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-lending/internal/service"
	"library-lending/internal/transport/http/ez"
)

type Module struct {
	svc *service.ReportService
	l   *zap.Logger
}

func New(svc *service.ReportService, l *zap.Logger) *Module { return &Module{svc: svc, l: l} }

func (m *Module) Priority() int { return 200 }

func (m *Module) MountAdmin(admin *gin.RouterGroup) {
	ez.RegisterAction(ez.New(admin, m.l), ez.Action[struct{}, []service.CategoryShare]{
		Method: http.MethodGet,
		Path:   "/reports/top-categories",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]service.CategoryShare, error) {
			return m.svc.TopCategories(c.Request.Context())
		},
	})
}
