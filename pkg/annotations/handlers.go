package annotations

import (
	"net/http"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const maxPageKeyLength = 200

type handler struct {
	annotationService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	annotations, err := h.annotationService.List(ctx, auth.FromContext(ctx), c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Annotations []*models.Annotation `json:"annotations"`
		Total       int                  `json:"total"`
	}{annotations, len(annotations)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) put(c echo.Context) error {
	ctx := c.Request().Context()

	pageKey := c.Param("pageKey")
	if pageKey == "" || len(pageKey) > maxPageKeyLength {
		return errcodes.ValidationError("Page key must be between 1 and 200 characters.")
	}

	// Bind params.
	params := PutAnnotationPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	annotation, err := h.annotationService.Put(ctx, auth.FromContext(ctx), c.Param("id"), pageKey, string(params.Data))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, annotation))
}
