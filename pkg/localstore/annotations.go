package localstore

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
)

func (s *Store) PutAnnotation(ctx context.Context, a *models.Annotation) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Key == "" {
		a.Key = models.AnnotationKey(a.BookID, a.PageKey)
	}

	_, err := s.db.
		NewInsert().
		Model(a).
		On("CONFLICT (key) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	return errors.WithStack(err)
}

// ListAnnotations returns every annotation whose key starts with prefix,
// ordered by key.
func (s *Store) ListAnnotations(ctx context.Context, prefix string) ([]*models.Annotation, error) {
	var annotations []*models.Annotation
	err := s.db.
		NewSelect().
		Model(&annotations).
		Where("substr(an.key, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix).
		Order("an.key ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return annotations, nil
}

// DeleteAnnotations removes every annotation whose key starts with prefix
// and reports how many went.
func (s *Store) DeleteAnnotations(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, errors.New("refusing to delete annotations with an empty prefix")
	}
	res, err := s.db.
		NewDelete().
		Model((*models.Annotation)(nil)).
		Where("substr(key, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return n, errors.WithStack(err)
}
