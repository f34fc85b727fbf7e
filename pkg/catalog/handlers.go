package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	catalogService *Service
}

func (h *handler) search(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := SearchQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	results, err := h.catalogService.Search(ctx, params.Q, params.Limit)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Results []*Result `json:"results"`
		Total   int       `json:"total"`
	}{results, len(results)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
