package books

import (
	"github.com/foliobooks/folio/pkg/auth"
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, bookService *Service, ingester Ingester, authMiddleware *auth.Middleware) {
	h := &handler{
		bookService: bookService,
		ingester:    ingester,
	}

	g.Use(authMiddleware.Identify)

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/progress", h.updateProgress)
	g.GET("/:id/file", h.file)
	g.GET("/:id/cover", h.cover)
}
