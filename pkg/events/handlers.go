package events

import (
	"fmt"
	"net/http"
	"time"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

type handler struct {
	broker    *Broker
	heartbeat time.Duration
}

func (h *handler) stream(c echo.Context) error {
	ctx := c.Request().Context()
	events, unsubscribe := h.broker.Subscribe(auth.FromContext(ctx).UserID)
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": heartbeat\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(evt)
			if err != nil {
				return errors.WithStack(err)
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
