package annotations

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers overlay routes on the books group,
// which already identifies the caller.
func RegisterRoutesWithGroup(g *echo.Group, annotationService *Service) {
	h := &handler{annotationService: annotationService}

	g.GET("/:id/annotations", h.list)
	g.PUT("/:id/annotations/:pageKey", h.put)
}
