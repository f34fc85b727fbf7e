package books

import (
	"io"
	"mime"
	"net/http"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const uploadField = "file"

type handler struct {
	bookService *Service
	ingester    Ingester
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := UploadBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	fh, ok := params.FormFiles[uploadField]
	if !ok {
		return errcodes.ValidationError("A book file is required.")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(data) == 0 {
		return errcodes.ValidationError("The uploaded file is empty.")
	}

	book, err := h.ingester.Ingest(ctx, auth.FromContext(ctx), Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	}, Hints{
		Title:    params.Title,
		Author:   params.Author,
		CoverURL: params.CoverURL,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	books, err := h.bookService.List(ctx, auth.FromContext(ctx))
	if err != nil {
		return errors.WithStack(err)
	}
	for _, b := range books {
		h.fillState(b)
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, len(books)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	book, err := h.bookService.Retrieve(ctx, auth.FromContext(ctx), c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}
	h.fillState(book)

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.ingester.Delete(ctx, auth.FromContext(ctx), c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) updateProgress(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := UpdateProgressPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.bookService.UpdateProgress(ctx, auth.FromContext(ctx), c.Param("id"), *params.Progress)
	if err != nil {
		return errors.WithStack(err)
	}
	h.fillState(book)

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) file(c echo.Context) error {
	ctx := c.Request().Context()

	book, err := h.bookService.Retrieve(ctx, auth.FromContext(ctx), c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}
	blob, err := h.bookService.RetrieveBlob(ctx, book.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": book.Filename}))
	return errors.WithStack(c.Blob(http.StatusOK, blob.MimeType, blob.Data))
}

func (h *handler) cover(c echo.Context) error {
	ctx := c.Request().Context()

	book, err := h.bookService.Retrieve(ctx, auth.FromContext(ctx), c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	key, ok := book.LocalCoverKey()
	if !ok {
		if book.CoverRef == "" {
			return errcodes.NotFound("Cover")
		}
		return errors.WithStack(c.Redirect(http.StatusFound, book.CoverRef))
	}

	blob, err := h.bookService.RetrieveBlob(ctx, key)
	if err != nil {
		return errors.WithStack(err)
	}

	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return errors.WithStack(c.Blob(http.StatusOK, blob.MimeType, blob.Data))
}

func (h *handler) fillState(b *models.Book) {
	if state := h.ingester.State(b.ID); state != "" {
		b.EnrichmentState = state
		return
	}
	b.EnrichmentState = models.EnrichmentStateComplete
}
