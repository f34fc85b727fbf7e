package ingest

import (
	"context"
	"strings"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/discovery"
	"github.com/foliobooks/folio/pkg/events"
	"github.com/foliobooks/folio/pkg/extract"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// findings is what enrichment learned about a book. Empty fields are
// unknown.
type findings struct {
	Title        string
	TitleSource  string
	Author       string
	AuthorSource string
	// CoverRef is a remote URL, or empty when the cover is LocalCover.
	CoverRef   string
	LocalCover *extract.Cover
}

// enrich runs once per ingested file. Sub-step failures are logged and the
// task carries on with what it has; only failing to save is reported.
func (c *Coordinator) enrich(ctx context.Context, id auth.Identity, bookID string, t *task, file extract.File) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return nil
	}
	t.cancel = cancel
	t.mu.Unlock()

	state := models.EnrichmentStateComplete
	defer func() {
		if err != nil {
			state = models.EnrichmentStateFailed
		}
		c.finish(bookID, t, state)
		if !t.isCancelled() {
			c.publish(id, bookID, state, events.TypeRefresh)
		}
	}()

	log := logger.FromContext(ctx).Data(logger.Data{"book_id": bookID})

	book, err := c.books.Retrieve(ctx, id, bookID)
	if err != nil {
		if t.isCancelled() {
			return nil
		}
		return errors.Wrap(err, "failed to load book for enrichment")
	}

	found := c.gather(ctx, log, book, file)
	if ctx.Err() != nil {
		log.Info("enrichment cancelled")
		return nil
	}

	return c.apply(ctx, log, id, t, bookID, found)
}

// gather asks the file first and the web second.
func (c *Coordinator) gather(ctx context.Context, log logger.Logger, book *models.Book, file extract.File) findings {
	var found findings

	meta := c.extractor.ExtractMetadata(ctx, file)
	if meta.Failed() {
		log.Err(meta.Err).Warn("metadata extraction failed")
	}
	if m, ok := meta.Get(); ok {
		found.Title = strings.TrimSpace(m.Title)
		found.TitleSource = dataSourceFor(file.Container)
		found.Author = strings.TrimSpace(m.Author)
		found.AuthorSource = found.TitleSource
	}

	if !c.resolver.IsPlaceholder(book.CoverRef) {
		return found
	}

	cover := c.extractor.ExtractCover(ctx, file)
	if cover.Failed() {
		log.Err(cover.Err).Warn("cover extraction failed")
	}
	if local, ok := cover.Get(); ok {
		found.LocalCover = &local
		return found
	}
	if ctx.Err() != nil {
		return found
	}

	title, author := book.Title, book.Author
	if found.Title != "" && models.IsPlaceholderSource(book.TitleSource) {
		title = found.Title
	}
	if found.Author != "" && models.IsPlaceholderSource(book.AuthorSource) {
		author = found.Author
	}

	remote := c.resolver.FindCover(ctx, title, author)
	if c.resolver.IsPlaceholder(remote.URL) {
		return found
	}
	log.Info("discovered cover", logger.Data{"source": remote.Source})
	found.CoverRef = remote.URL
	if found.Author == "" && remote.Author != "" {
		found.Author = strings.TrimSpace(remote.Author)
		found.AuthorSource = models.DataSourceDiscovery
	}
	return found
}

// apply writes found into the latest copy of the book unless the book was
// deleted or re-registered in the meantime.
func (c *Coordinator) apply(ctx context.Context, log logger.Logger, id auth.Identity, t *task, bookID string, found findings) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || !c.current(bookID, t) {
		log.Info("discarding stale enrichment")
		return nil
	}

	book, err := c.books.Retrieve(ctx, id, bookID)
	if err != nil {
		return errors.Wrap(err, "failed to reload book")
	}

	if found.LocalCover != nil {
		key := models.CoverBlobKey(bookID)
		if err := c.books.PutBlob(ctx, key, found.LocalCover.MimeType, found.LocalCover.Data); err != nil {
			log.Err(err).Warn("failed to store extracted cover")
		} else {
			found.CoverRef = models.CoverBlobRef(bookID)
		}
	}

	if !merge(book, found, c.resolver.IsPlaceholder) {
		return nil
	}
	if err := c.books.Write(ctx, id, book); err != nil {
		return errors.Wrap(err, "failed to save enriched book")
	}
	log.Info("enriched book", logger.Data{
		"title_source":  book.TitleSource,
		"author_source": book.AuthorSource,
		"local_cover":   found.LocalCover != nil,
	})
	return nil
}

// merge folds found into book and reports whether anything changed. Only
// provisional values are replaced, and a cover is never set back to the
// placeholder.
func merge(book *models.Book, found findings, isPlaceholder func(string) bool) bool {
	changed := false

	if found.Title != "" && models.IsPlaceholderSource(book.TitleSource) {
		if found.Title != book.Title {
			book.Title = found.Title
		}
		book.TitleSource = found.TitleSource
		changed = true
	}
	if found.Author != "" && found.Author != models.UnknownAuthor && models.IsPlaceholderSource(book.AuthorSource) {
		if found.Author != book.Author {
			book.Author = found.Author
		}
		book.AuthorSource = found.AuthorSource
		changed = true
	}
	if found.CoverRef != "" && !isPlaceholder(found.CoverRef) && found.CoverRef != book.CoverRef {
		book.CoverRef = found.CoverRef
		changed = true
	}

	return changed
}

func dataSourceFor(container string) string {
	switch container {
	case models.ContainerEPUB:
		return models.DataSourceEPUBMetadata
	case models.ContainerPDF:
		return models.DataSourcePDFMetadata
	case models.ContainerCBZ:
		return models.DataSourceCBZMetadata
	}
	return ""
}

func (t *task) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

var _ Resolver = (*discovery.Resolver)(nil)
