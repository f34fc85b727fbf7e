// Package localstore is the embedded SQLite store every book row, blob and
// annotation can fall back to.
package localstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/database"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/migrations"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

var ErrLocked = errors.New("database file is in use by another process")

type Store struct {
	db   *bun.DB
	lock *flock.Flock
}

// Open takes an exclusive lock next to the database file, connects and
// migrates. In-memory databases skip the lock.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	lock, err := Lock(cfg.DatabaseFilePath)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg)
	if err != nil {
		Unlock(lock)
		return nil, err
	}

	if _, err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		Unlock(lock)
		return nil, errors.Wrap(err, "failed to migrate local store")
	}

	return &Store{db: db, lock: lock}, nil
}

// New wraps an already migrated database.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) Close() error {
	err := s.db.Close()
	Unlock(s.lock)
	return errors.WithStack(err)
}

// Lock takes the lock file that marks path as owned by this process. It
// returns nil for in-memory databases, and ErrLocked when another process
// already holds the file.
func Lock(path string) (*flock.Flock, error) {
	if isMemory(path) {
		return nil, nil
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock database file")
	}
	if !ok {
		return nil, errors.WithStack(ErrLocked)
	}
	return lock, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// Unlock releases a lock returned by Lock. A nil lock is ignored.
func Unlock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

// UpsertBook inserts the row or replaces every column of the existing one.
func (s *Store) UpsertBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now

	_, err := s.db.
		NewInsert().
		Model(book).
		On("CONFLICT (id) DO UPDATE").
		Exec(ctx)
	return errors.WithStack(err)
}

func (s *Store) RetrieveBook(ctx context.Context, id string) (*models.Book, error) {
	book := &models.Book{}
	err := s.db.
		NewSelect().
		Model(book).
		Where("b.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}
	return book, nil
}

// ListBooks returns the rows owned by userID, newest first. Guest rows are
// owned by the empty user id.
func (s *Store) ListBooks(ctx context.Context, userID string) ([]*models.Book, error) {
	var books []*models.Book
	err := s.db.
		NewSelect().
		Model(&books).
		Where("b.user_id = ?", userID).
		Order("b.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return books, nil
}

// DeleteBook removes the row. A missing row is not an error.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	_, err := s.db.
		NewDelete().
		Model((*models.Book)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}
