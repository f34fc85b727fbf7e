package testutils

import (
	"net/http"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	store       *localstore.Store
	authService *auth.Service
}

// createTokenRequest is the request body for minting a test token.
type createTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type createTokenResponse struct {
	Token string `json:"token"`
}

// createToken signs a bearer token for any user id.
// POST /test/tokens.
func (h *handler) createToken(c echo.Context) error {
	var req createTokenRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	if !h.authService.Verifies() {
		return errcodes.ValidationError("REMOTE_JWT_SECRET must be set to mint test tokens.")
	}

	token, err := h.authService.GenerateToken(req.UserID)
	if err != nil {
		return errors.Wrap(err, "failed to sign token")
	}

	return c.JSON(http.StatusCreated, createTokenResponse{Token: token})
}

// deleteAllBooksResponse is the response body for wiping the local store.
type deleteAllBooksResponse struct {
	Deleted int `json:"deleted"`
}

// deleteAllBooks removes every book, blob and annotation from the local
// store.
// DELETE /test/books.
func (h *handler) deleteAllBooks(c echo.Context) error {
	ctx := c.Request().Context()
	db := h.store.DB()

	_, err := db.NewDelete().
		Model((*models.Annotation)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete annotations")
	}

	_, err = db.NewDelete().
		Model((*models.Blob)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete blobs")
	}

	result, err := db.NewDelete().
		Model((*models.Book)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete books")
	}

	deleted, _ := result.RowsAffected()

	return c.JSON(http.StatusOK, deleteAllBooksResponse{
		Deleted: int(deleted),
	})
}
