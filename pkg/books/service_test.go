package books

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/remote"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu      sync.Mutex
	books   map[string]*models.Book
	failErr error
	calls   atomic.Int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{books: map[string]*models.Book{}}
}

func (f *fakeRemote) UpsertBook(_ context.Context, _ string, book *models.Book) error {
	f.calls.Add(1)
	if f.failErr != nil {
		return f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books[book.ID] = book.Clone()
	return nil
}

func (f *fakeRemote) DeleteBook(_ context.Context, _, id string) error {
	f.calls.Add(1)
	if f.failErr != nil {
		return f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.books, id)
	return nil
}

func (f *fakeRemote) ListBooks(_ context.Context, _ string) ([]*models.Book, error) {
	f.calls.Add(1)
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Book
	for _, b := range f.books {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (f *fakeRemote) RetrieveBook(_ context.Context, _, id string) (*models.Book, error) {
	f.calls.Add(1)
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return b.Clone(), nil
}

func newTestStore(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(context.Background(), config.NewForTest())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var (
	guest = auth.Identity{}
	alice = auth.Identity{UserID: "alice", Token: "token-alice", Verified: true}
)

func TestWrite_GuestStaysLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rem := newFakeRemote()
	svc := NewService(newTestStore(t), rem)

	book := &models.Book{ID: "b1", Title: "Dune", Author: "Frank Herbert"}
	require.NoError(t, svc.Write(ctx, guest, book))
	assert.Equal(t, models.StorageLocal, book.Storage)
	assert.EqualValues(t, 0, rem.calls.Load())

	books, err := svc.List(ctx, guest)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
	assert.EqualValues(t, 0, rem.calls.Load())
}

func TestWrite_RemoteSuccessDropsLocalCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	rem := newFakeRemote()
	rem.failErr = remote.ErrPermissionDenied
	svc := NewService(store, rem)

	book := &models.Book{ID: "b1", Title: "Dune", Author: "Frank Herbert"}
	require.NoError(t, svc.Write(ctx, alice, book))
	assert.Equal(t, models.StorageLocal, book.Storage)

	// The backend starts accepting writes again.
	rem.failErr = nil
	require.NoError(t, svc.Write(ctx, alice, book))
	assert.Equal(t, models.StorageRemote, book.Storage)

	_, err := store.RetrieveBook(ctx, "b1")
	assert.True(t, errcodes.IsNotFound(err))

	got, err := svc.Retrieve(ctx, alice, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.StorageRemote, got.Storage)
	assert.Equal(t, "alice", got.UserID)
}

// A row-level security rejection must leave the book retrievable from the
// local store and visible in the merged list.
func TestWrite_PermissionDeniedFallsBackToLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			posts.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":"42501","message":"new row violates row-level security policy for table \"books\""}`))
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.NewForTest()
	cfg.RemoteURL = srv.URL
	cfg.RemoteAPIKey = "anon"
	svc := NewService(newTestStore(t), remote.New(cfg, srv.Client()))

	book := &models.Book{ID: "b1", Title: "Dune", Author: "Frank Herbert"}
	require.NoError(t, svc.Write(ctx, alice, book))
	assert.EqualValues(t, 1, posts.Load())
	assert.Equal(t, models.StorageLocal, book.Storage)

	got, err := svc.Retrieve(ctx, alice, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.StorageLocal, got.Storage)
	assert.Equal(t, "Dune", got.Title)

	books, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "b1", books[0].ID)
}

func TestList_MergesRemoteFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	rem := newFakeRemote()
	svc := NewService(store, rem)

	now := time.Now()
	rem.books["shared"] = &models.Book{ID: "shared", UserID: "alice", Title: "Remote copy", CreatedAt: now.Add(-time.Hour)}
	rem.books["r1"] = &models.Book{ID: "r1", UserID: "alice", Title: "Only remote", CreatedAt: now.Add(-3 * time.Hour)}
	require.NoError(t, store.UpsertBook(ctx, &models.Book{ID: "shared", UserID: "alice", Title: "Local copy", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, store.UpsertBook(ctx, &models.Book{ID: "l1", UserID: "alice", Title: "Only local", CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.UpsertBook(ctx, &models.Book{ID: "other", UserID: "bob", Title: "Someone else's", CreatedAt: now}))

	books, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "Remote copy", books[0].Title)
	assert.Equal(t, models.StorageRemote, books[0].Storage)
	assert.Equal(t, "Only local", books[1].Title)
	assert.Equal(t, models.StorageLocal, books[1].Storage)
	assert.Equal(t, "Only remote", books[2].Title)
}

func TestList_RemoteFailureDegradesToLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	rem := newFakeRemote()
	rem.failErr = errors.New("connection refused")
	svc := NewService(store, rem)

	require.NoError(t, store.UpsertBook(ctx, &models.Book{ID: "l1", UserID: "alice", Title: "Only local"}))

	books, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "l1", books[0].ID)
}

func TestRetrieve_OtherUsersLocalBookIsHidden(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewService(store, nil)

	require.NoError(t, store.UpsertBook(ctx, &models.Book{ID: "b1", UserID: "bob", Title: "Private"}))

	_, err := svc.Retrieve(ctx, alice, "b1")
	assert.True(t, errcodes.IsNotFound(err))
	_, err = svc.Retrieve(ctx, guest, "b1")
	assert.True(t, errcodes.IsNotFound(err))

	err = svc.Delete(ctx, alice, "b1")
	assert.True(t, errcodes.IsNotFound(err))
}

// A claim nobody checked must not unlock another user's local rows.
func TestUnverifiedIdentityIsAGuestLocally(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewService(store, nil)

	require.NoError(t, store.UpsertBook(ctx, &models.Book{ID: "b1", UserID: "bob", Title: "Private"}))
	forged := auth.Identity{UserID: "bob", Token: "unsigned"}

	_, err := svc.Retrieve(ctx, forged, "b1")
	assert.True(t, errcodes.IsNotFound(err))
	books, err := svc.List(ctx, forged)
	require.NoError(t, err)
	assert.Empty(t, books)
	err = svc.Delete(ctx, forged, "b1")
	assert.True(t, errcodes.IsNotFound(err))

	book := &models.Book{ID: "b2", Title: "Dune"}
	require.NoError(t, svc.Write(ctx, forged, book))
	assert.Empty(t, book.UserID)
	_, err = svc.Retrieve(ctx, guest, "b2")
	require.NoError(t, err)
}

func TestDelete_RemoteFailureKeepsRemoteBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	rem := newFakeRemote()
	svc := NewService(store, rem)

	require.NoError(t, svc.Write(ctx, alice, &models.Book{ID: "b1", Title: "Dune"}))
	require.NoError(t, svc.PutBlob(ctx, "b1", "application/epub+zip", []byte("PK")))

	rem.failErr = errors.New("503 service unavailable")
	err := svc.Delete(ctx, alice, "b1")
	require.Error(t, err)

	// Nothing local was touched, so a retry can finish the job.
	_, err = svc.RetrieveBlob(ctx, "b1")
	require.NoError(t, err)

	rem.failErr = nil
	books, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, books, 1)

	require.NoError(t, svc.Delete(ctx, alice, "b1"))
	books, err = svc.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, books)
	_, err = svc.RetrieveBlob(ctx, "b1")
	assert.True(t, errcodes.IsNotFound(err))
}

func TestDelete_RemoteFailureStillRemovesFallbackCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	rem := newFakeRemote()
	rem.failErr = remote.ErrPermissionDenied
	svc := NewService(store, rem)

	book := &models.Book{ID: "b1", Title: "Dune"}
	require.NoError(t, svc.Write(ctx, alice, book))
	require.Equal(t, models.StorageLocal, book.Storage)
	require.NoError(t, svc.PutBlob(ctx, "b1", "application/epub+zip", []byte("PK")))

	require.NoError(t, svc.Delete(ctx, alice, "b1"))

	_, err := store.RetrieveBook(ctx, "b1")
	assert.True(t, errcodes.IsNotFound(err))
	_, err = svc.RetrieveBlob(ctx, "b1")
	assert.True(t, errcodes.IsNotFound(err))
}

func TestDelete_RemovesEverything(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewService(store, nil)

	book := &models.Book{ID: "b1", Title: "Dune"}
	require.NoError(t, svc.Write(ctx, guest, book))
	require.NoError(t, svc.PutBlob(ctx, "b1", "application/epub+zip", []byte("PK")))
	require.NoError(t, svc.PutBlob(ctx, models.CoverBlobKey("b1"), "image/jpeg", []byte{0xff, 0xd8}))
	require.NoError(t, svc.PutBlob(ctx, "b10", "application/pdf", []byte("%PDF-")))
	require.NoError(t, store.PutAnnotation(ctx, &models.Annotation{BookID: "b1", PageKey: "3", Data: "{}"}))
	require.NoError(t, store.PutAnnotation(ctx, &models.Annotation{BookID: "b10", PageKey: "3", Data: "{}"}))

	require.NoError(t, svc.Delete(ctx, guest, "b1"))

	_, err := svc.Retrieve(ctx, guest, "b1")
	assert.True(t, errcodes.IsNotFound(err))
	_, err = svc.RetrieveBlob(ctx, "b1")
	assert.True(t, errcodes.IsNotFound(err))
	_, err = svc.RetrieveBlob(ctx, models.CoverBlobKey("b1"))
	assert.True(t, errcodes.IsNotFound(err))

	left, err := store.ListAnnotations(ctx, models.AnnotationPrefix("b1"))
	require.NoError(t, err)
	assert.Empty(t, left)

	// Neighbouring ids share a textual prefix but not the separator.
	_, err = svc.RetrieveBlob(ctx, "b10")
	require.NoError(t, err)
	left, err = store.ListAnnotations(ctx, models.AnnotationPrefix("b10"))
	require.NoError(t, err)
	assert.Len(t, left, 1)

	// Deleting again is not an error.
	require.NoError(t, svc.Delete(ctx, guest, "b1"))
}

func TestUpdateProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(newTestStore(t), nil)

	require.NoError(t, svc.Write(ctx, guest, &models.Book{ID: "b1", Title: "Dune"}))

	book, err := svc.UpdateProgress(ctx, guest, "b1", 0.42)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, book.Progress, 1e-9)

	got, err := svc.Retrieve(ctx, guest, "b1")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, got.Progress, 1e-9)
}
