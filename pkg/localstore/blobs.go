package localstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func (s *Store) PutBlob(ctx context.Context, key, mimeType string, data []byte) error {
	blob := &models.Blob{
		Key:       key,
		CreatedAt: time.Now(),
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
		Data:      data,
	}
	if blob.Data == nil {
		blob.Data = []byte{}
	}

	_, err := s.db.
		NewInsert().
		Model(blob).
		On("CONFLICT (key) DO UPDATE").
		Exec(ctx)
	return errors.WithStack(err)
}

func (s *Store) RetrieveBlob(ctx context.Context, key string) (*models.Blob, error) {
	blob := &models.Blob{}
	err := s.db.
		NewSelect().
		Model(blob).
		Where("bl.key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Blob")
		}
		return nil, errors.WithStack(err)
	}
	return blob, nil
}

// DeleteBlobs removes the given keys. Keys that do not exist are ignored.
func (s *Store) DeleteBlobs(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.
		NewDelete().
		Model((*models.Blob)(nil)).
		Where("key IN (?)", bun.In(keys)).
		Exec(ctx)
	return errors.WithStack(err)
}
