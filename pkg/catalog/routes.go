package catalog

import (
	"github.com/foliobooks/folio/pkg/auth"
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, catalogService *Service, authMiddleware *auth.Middleware) {
	h := &handler{catalogService: catalogService}

	g := e.Group("/catalog", authMiddleware.Identify)
	g.GET("/search", h.search)
}
