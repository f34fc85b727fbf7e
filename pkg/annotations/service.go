package annotations

import (
	"context"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/books"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/foliobooks/folio/pkg/models"
)

// Service stores per-page drawing overlays. Overlays always live in the
// local store; access follows the book they belong to.
type Service struct {
	store       *localstore.Store
	bookService *books.Service
}

func NewService(store *localstore.Store, bookService *books.Service) *Service {
	return &Service{store: store, bookService: bookService}
}

func (svc *Service) List(ctx context.Context, id auth.Identity, bookID string) ([]*models.Annotation, error) {
	if _, err := svc.bookService.Retrieve(ctx, id, bookID); err != nil {
		return nil, err
	}
	return svc.store.ListAnnotations(ctx, models.AnnotationPrefix(bookID))
}

func (svc *Service) Put(ctx context.Context, id auth.Identity, bookID, pageKey, data string) (*models.Annotation, error) {
	if _, err := svc.bookService.Retrieve(ctx, id, bookID); err != nil {
		return nil, err
	}
	a := &models.Annotation{
		BookID:  bookID,
		PageKey: pageKey,
		Data:    data,
	}
	if err := svc.store.PutAnnotation(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
