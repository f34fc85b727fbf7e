package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type handler struct {
	authService *Service
}

type MeResponse struct {
	UserID   string `json:"user_id,omitempty"`
	Guest    bool   `json:"guest"`
	Verified bool   `json:"verified"`
}

func (h *handler) me(c echo.Context) error {
	id := FromContext(c.Request().Context())
	return c.JSON(http.StatusOK, MeResponse{
		UserID:   id.UserID,
		Guest:    id.IsGuest(),
		Verified: !id.IsGuest() && h.authService.Verifies(),
	})
}
