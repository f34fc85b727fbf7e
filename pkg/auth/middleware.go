package auth

import (
	"strings"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
)

const bearerPrefix = "Bearer "

type Middleware struct {
	authService *Service
}

func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{authService: authService}
}

// Identify attaches the caller's identity to the request context. Requests
// without an Authorization header continue as guests; a header that is
// present but unusable is rejected rather than silently downgraded.
func (m *Middleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return next(c)
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			return errcodes.Unauthorized("Authorization must be a bearer token")
		}

		id, err := m.authService.Identify(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err != nil {
			logger.FromEchoContext(c).Err(err).Info("rejected bearer token")
			return errcodes.Unauthorized("Invalid or expired token")
		}

		req := c.Request()
		c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
		c.Set("user_id", id.UserID)
		return next(c)
	}
}
