package books

import (
	"context"
	"sort"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/remote"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Remote is the hosted backend for signed-in users' rows.
type Remote interface {
	UpsertBook(ctx context.Context, token string, book *models.Book) error
	DeleteBook(ctx context.Context, token, id string) error
	ListBooks(ctx context.Context, token string) ([]*models.Book, error)
	RetrieveBook(ctx context.Context, token, id string) (*models.Book, error)
}

// Service decides where each book row lives. Signed-in users' rows go to
// the remote backend when one is configured, falling back to the local
// store whenever the backend refuses. Guests only ever use the local store.
// Blobs and annotations are always local.
type Service struct {
	store  *localstore.Store
	remote Remote
}

// NewService returns a Service. remote may be nil.
func NewService(store *localstore.Store, remote Remote) *Service {
	return &Service{store: store, remote: remote}
}

func (svc *Service) usesRemote(id auth.Identity) bool {
	return svc.remote != nil && !id.IsGuest()
}

// Write persists book for id. It only fails when the local store does.
func (svc *Service) Write(ctx context.Context, id auth.Identity, book *models.Book) error {
	log := logger.FromContext(ctx).Data(logger.Data{"book_id": book.ID})

	if svc.usesRemote(id) {
		book.UserID = id.UserID
		err := svc.remote.UpsertBook(ctx, id.Token, book)
		if err == nil {
			book.Storage = models.StorageRemote
			// An earlier fallback may have left a copy behind.
			if err := svc.store.DeleteBook(ctx, book.ID); err != nil {
				log.Err(err).Warn("failed to drop stale local copy")
			}
			return nil
		}
		log.Err(err).Warn("remote write failed, keeping book locally", logger.Data{
			"permission_denied": errors.Is(err, remote.ErrPermissionDenied),
		})
	}

	book.UserID = id.LocalOwner()
	book.Storage = models.StorageLocal
	return svc.store.UpsertBook(ctx, book)
}

// Retrieve returns a book id can see, looking at the remote backend first.
func (svc *Service) Retrieve(ctx context.Context, id auth.Identity, bookID string) (*models.Book, error) {
	if svc.usesRemote(id) {
		book, err := svc.remote.RetrieveBook(ctx, id.Token, bookID)
		if err == nil {
			book.Storage = models.StorageRemote
			return book, nil
		}
		if !errors.Is(err, remote.ErrNotFound) {
			logger.FromContext(ctx).Err(err).Warn("remote lookup failed, trying local store", logger.Data{"book_id": bookID})
		}
	}

	book, err := svc.store.RetrieveBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.UserID != id.LocalOwner() {
		return nil, errcodes.NotFound("Book")
	}
	book.Storage = models.StorageLocal
	return book, nil
}

// List merges the remote rows with the local rows id owns. Where both hold
// the same book, the remote row wins. A failing remote degrades to the
// local rows alone.
func (svc *Service) List(ctx context.Context, id auth.Identity) ([]*models.Book, error) {
	local, err := svc.store.ListBooks(ctx, id.LocalOwner())
	if err != nil {
		return nil, err
	}
	for _, b := range local {
		b.Storage = models.StorageLocal
	}
	if !svc.usesRemote(id) {
		return local, nil
	}

	remoteBooks, err := svc.remote.ListBooks(ctx, id.Token)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("remote list failed, showing local books only")
		return local, nil
	}

	seen := make(map[string]bool, len(remoteBooks))
	merged := make([]*models.Book, 0, len(remoteBooks)+len(local))
	for _, b := range remoteBooks {
		b.Storage = models.StorageRemote
		seen[b.ID] = true
		merged = append(merged, b)
	}
	for _, b := range local {
		if !seen[b.ID] {
			merged = append(merged, b)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged, nil
}

// Delete removes the book row wherever it lives, then its blobs and
// annotations. Deleting something already gone succeeds.
func (svc *Service) Delete(ctx context.Context, id auth.Identity, bookID string) error {
	log := logger.FromContext(ctx).Data(logger.Data{"book_id": bookID})

	existing, err := svc.store.RetrieveBook(ctx, bookID)
	if err != nil && !errcodes.IsNotFound(err) {
		return err
	}
	if existing != nil && existing.UserID != id.LocalOwner() {
		return errcodes.NotFound("Book")
	}

	if svc.usesRemote(id) {
		if err := svc.remote.DeleteBook(ctx, id.Token, bookID); err != nil && !errors.Is(err, remote.ErrNotFound) {
			// A book that fell back to the local store can still be
			// removed. Otherwise the row lives remotely and its blobs must
			// stay until it is gone.
			if existing == nil {
				log.Err(err).Error("remote delete failed")
				return errcodes.UpstreamUnavailable("Remote backend")
			}
			log.Err(err).Warn("remote delete failed, removing local copy")
		}
	}

	if err := svc.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}
	if err := svc.store.DeleteBlobs(ctx, bookID, models.CoverBlobKey(bookID)); err != nil {
		return err
	}
	n, err := svc.store.DeleteAnnotations(ctx, models.AnnotationPrefix(bookID))
	if err != nil {
		return err
	}

	log.Info("deleted book", logger.Data{"annotations": n})
	return nil
}

// UpdateProgress records the reader's position.
func (svc *Service) UpdateProgress(ctx context.Context, id auth.Identity, bookID string, progress float64) (*models.Book, error) {
	book, err := svc.Retrieve(ctx, id, bookID)
	if err != nil {
		return nil, err
	}
	book.Progress = progress
	if err := svc.Write(ctx, id, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (svc *Service) PutBlob(ctx context.Context, key, mimeType string, data []byte) error {
	return svc.store.PutBlob(ctx, key, mimeType, data)
}

func (svc *Service) RetrieveBlob(ctx context.Context, key string) (*models.Blob, error) {
	return svc.store.RetrieveBlob(ctx, key)
}
