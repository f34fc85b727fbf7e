package events

import (
	"time"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, broker *Broker, heartbeat time.Duration, authMiddleware *auth.Middleware) {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	h := &handler{broker: broker, heartbeat: heartbeat}

	e.GET("/events", h.stream, authMiddleware.Identify)
}
