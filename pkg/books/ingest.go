package books

import (
	"context"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/models"
)

// Upload is a file as it arrived from the client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Hints are caller-supplied values that take precedence over anything
// derived from the file name.
type Hints struct {
	Title    string
	Author   string
	CoverURL string
}

// Ingester owns the lifecycle of uploaded books, including their
// background enrichment.
type Ingester interface {
	Ingest(ctx context.Context, id auth.Identity, upload Upload, hints Hints) (*models.Book, error)
	Delete(ctx context.Context, id auth.Identity, bookID string) error
	// State returns the enrichment state of a live task, or "" when none
	// exists.
	State(bookID string) string
}
