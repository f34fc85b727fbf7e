// Package ingest turns an uploaded file into a book record right away and
// then improves that record in the background.
package ingest

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/books"
	"github.com/foliobooks/folio/pkg/discovery"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/events"
	"github.com/foliobooks/folio/pkg/extract"
	"github.com/foliobooks/folio/pkg/filename"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/worker"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/crypto/blake2b"
)

const taskTypeEnrich = "enrich"

// Resolver looks a cover up on the web.
type Resolver interface {
	FindCover(ctx context.Context, title, author string) discovery.Cover
	Placeholder() discovery.Cover
	IsPlaceholder(rawURL string) bool
}

// Enqueuer runs background work without blocking the caller.
type Enqueuer interface {
	Enqueue(task worker.Task) error
}

type Coordinator struct {
	books     *books.Service
	extractor *extract.Extractor
	resolver  Resolver
	queue     Enqueuer
	broker    *events.Broker

	mu         sync.Mutex
	generation uint64
	tasks      map[string]*task
}

// task is the registry entry for one book's enrichment. Its lock is held
// while results are written and while the book is deleted, so the two
// never interleave.
type task struct {
	mu         sync.Mutex
	generation uint64
	state      string
	cancel     context.CancelFunc
	cancelled  bool
}

func New(bookService *books.Service, extractor *extract.Extractor, resolver Resolver, queue Enqueuer, broker *events.Broker) *Coordinator {
	return &Coordinator{
		books:     bookService,
		extractor: extractor,
		resolver:  resolver,
		queue:     queue,
		broker:    broker,
		tasks:     map[string]*task{},
	}
}

// Ingest validates and stores upload, persists a placeholder record and
// schedules enrichment. The returned book is usable immediately.
func (c *Coordinator) Ingest(ctx context.Context, id auth.Identity, upload books.Upload, hints books.Hints) (*models.Book, error) {
	format, err := DetectFormat(upload.Filename, upload.ContentType, upload.Data)
	if err != nil {
		return nil, err
	}
	if err := validate(format.Container, upload.Data); err != nil {
		return nil, err
	}

	sum := blake2b.Sum256(upload.Data)
	parsed := filename.ParseFilename(upload.Filename)

	book := &models.Book{
		ID:           uuid.New().String(),
		Title:        parsed.Title,
		TitleSource:  models.DataSourceFilename,
		Author:       parsed.Author,
		AuthorSource: models.DataSourceFilename,
		CoverRef:     c.resolver.Placeholder().URL,
		Format:       format.Format,
		Container:    format.Container,
		Filename:     upload.Filename,
		ContentType:  format.ContentType,
		SizeBytes:    int64(len(upload.Data)),
		ContentHash:  hex.EncodeToString(sum[:]),
	}
	if t := strings.TrimSpace(hints.Title); t != "" {
		book.Title, book.TitleSource = t, models.DataSourceHint
	}
	if a := strings.TrimSpace(hints.Author); a != "" {
		book.Author, book.AuthorSource = a, models.DataSourceHint
	}
	if u := strings.TrimSpace(hints.CoverURL); u != "" {
		book.CoverRef = u
	}

	log := logger.FromContext(ctx).Data(logger.Data{"book_id": book.ID, "container": book.Container})

	if err := c.books.PutBlob(ctx, book.ID, book.ContentType, upload.Data); err != nil {
		return nil, errors.Wrap(err, "failed to store upload")
	}
	if err := c.books.Write(ctx, id, book); err != nil {
		if derr := c.books.Delete(ctx, id, book.ID); derr != nil {
			log.Err(derr).Warn("failed to clean up after a failed ingest")
		}
		return nil, errors.Wrap(err, "failed to save book")
	}

	t := c.register(book.ID)
	book.EnrichmentState = models.EnrichmentStatePending

	file := extract.File{Name: upload.Filename, Container: book.Container, Data: upload.Data}
	err = c.queue.Enqueue(worker.Task{
		Type: taskTypeEnrich,
		Key:  book.ID,
		Run: func(taskCtx context.Context) error {
			return c.enrich(taskCtx, id, book.ID, t, file)
		},
	})
	if err != nil {
		log.Err(err).Warn("could not schedule enrichment")
		c.finish(book.ID, t, models.EnrichmentStateFailed)
		book.EnrichmentState = models.EnrichmentStateFailed
	}

	log.Info("ingested book", logger.Data{"title_source": book.TitleSource, "author_source": book.AuthorSource})
	c.publish(id, book.ID, book.EnrichmentState, events.TypeRefresh)
	return book, nil
}

// Delete cancels any enrichment still running for bookID and removes the
// book. A result the task produces afterwards is discarded.
func (c *Coordinator) Delete(ctx context.Context, id auth.Identity, bookID string) error {
	if _, err := c.books.Retrieve(ctx, id, bookID); err != nil {
		if !errcodes.IsNotFound(err) {
			return err
		}
		// Nothing of the caller's to cancel; let the reconciler decide
		// between "already gone" and "not yours".
		return c.books.Delete(ctx, id, bookID)
	}

	c.mu.Lock()
	t := c.tasks[bookID]
	delete(c.tasks, bookID)
	c.mu.Unlock()

	if t != nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.cancelled = true
		if t.cancel != nil {
			t.cancel()
		}
	}

	if err := c.books.Delete(ctx, id, bookID); err != nil {
		return err
	}
	c.publish(id, bookID, "", events.TypeDeleted)
	return nil
}

// State returns the enrichment state of bookID while its task is live.
func (c *Coordinator) State(bookID string) string {
	c.mu.Lock()
	t := c.tasks[bookID]
	c.mu.Unlock()
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (c *Coordinator) register(bookID string) *task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	t := &task{generation: c.generation, state: models.EnrichmentStatePending}
	c.tasks[bookID] = t
	return t
}

// current reports whether t is still the registered task for bookID.
func (c *Coordinator) current(bookID string, t *task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	live, ok := c.tasks[bookID]
	return ok && live.generation == t.generation
}

func (c *Coordinator) finish(bookID string, t *task, state string) {
	c.mu.Lock()
	if live, ok := c.tasks[bookID]; ok && live.generation == t.generation {
		delete(c.tasks, bookID)
	}
	c.mu.Unlock()

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

func (c *Coordinator) publish(id auth.Identity, bookID, state, eventType string) {
	c.broker.Publish(events.Event{
		Type:   eventType,
		BookID: bookID,
		State:  state,
		UserID: id.UserID,
	})
}
