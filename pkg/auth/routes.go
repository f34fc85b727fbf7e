package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the identity echo route and returns the
// middleware every other route group should run.
func RegisterRoutes(e *echo.Echo, authService *Service) *Middleware {
	h := &handler{authService: authService}
	mw := NewMiddleware(authService)

	auth := e.Group("/auth", mw.Identify)
	auth.GET("/me", h.me)

	return mw
}
