// Package testutils provides test-only API endpoints.
// These routes are only registered when ENVIRONMENT=test.
package testutils

import (
	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers test-only routes.
// These endpoints should ONLY be registered in test environments.
func RegisterRoutes(e *echo.Echo, store *localstore.Store, authService *auth.Service) {
	h := &handler{store: store, authService: authService}

	test := e.Group("/test")
	test.POST("/tokens", h.createToken)
	test.DELETE("/books", h.deleteAllBooks)
}
