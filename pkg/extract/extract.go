// Package extract pulls metadata and a cover image out of a book file
// without touching the network.
package extract

import (
	"context"
	"image"
	"strings"

	"github.com/foliobooks/folio/pkg/cbz"
	"github.com/foliobooks/folio/pkg/epub"
	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/pdf"
	"github.com/foliobooks/folio/pkg/result"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// File is an uploaded book held in memory.
type File struct {
	Name      string
	Container string
	Data      []byte
}

type Metadata struct {
	Title  string
	Author string
}

type Cover struct {
	Data     []byte
	MimeType string
	// Source is epub.CoverSourceDeclared, epub.CoverSourceManifest or
	// CoverSourcePage.
	Source string
}

// PageSource is a fixed-page document that can be rasterized page by page.
type PageSource interface {
	PageCount() int
	RenderPage(ctx context.Context, index int, scale float64) (image.Image, error)
	Close() error
}

// PageOpener opens data as a PageSource.
type PageOpener func(ctx context.Context, data []byte) (PageSource, error)

type Extractor struct {
	openers map[string]PageOpener
}

// New returns an Extractor. pdfPages renders PDF pages; when nil, PDF files
// never yield a cover. CBZ pages are always decoded in process.
func New(pdfPages PageOpener) *Extractor {
	openers := map[string]PageOpener{
		models.ContainerCBZ: OpenCBZPages,
	}
	if pdfPages != nil {
		openers[models.ContainerPDF] = pdfPages
	}
	return &Extractor{openers: openers}
}

// OpenCBZPages is the PageOpener for comic archives.
func OpenCBZPages(_ context.Context, data []byte) (PageSource, error) {
	archive, err := cbz.Open(data)
	if err != nil {
		return nil, err
	}
	return archive, nil
}

// PDFPages adapts a pdf.Renderer into a PageOpener.
func PDFPages(r *pdf.Renderer) PageOpener {
	return func(ctx context.Context, data []byte) (PageSource, error) {
		doc, err := r.Open(ctx, data)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// ExtractMetadata reads the title and author the file declares about
// itself.
func (e *Extractor) ExtractMetadata(ctx context.Context, f File) (res result.Result[Metadata]) {
	defer recoverInto(ctx, "metadata", &res)

	var (
		m   *mediafile.ParsedMetadata
		err error
	)
	switch f.Container {
	case models.ContainerEPUB:
		var book *epub.Book
		book, err = epub.Open(f.Data)
		if err == nil {
			m = book.Metadata()
		}
	case models.ContainerPDF:
		m, err = pdf.ReadInfo(f.Data)
	case models.ContainerCBZ:
		var archive *cbz.Archive
		archive, err = cbz.Open(f.Data)
		if err == nil {
			m = archive.Metadata()
		}
	default:
		return result.Failed[Metadata](errors.Errorf("unsupported container %q", f.Container))
	}
	if err != nil {
		return result.Failed[Metadata](err)
	}

	md := Metadata{
		Title:  strings.TrimSpace(m.Title),
		Author: m.PrimaryAuthor(),
	}
	if md.Title == "" && md.Author == "" {
		return result.NotFound[Metadata]()
	}
	return result.Of(md)
}

// ExtractCover finds a cover image inside the file. Reflowable books use
// the cover their package declares, or failing that a manifest image named
// like a cover. Fixed-page books get a rendering of whichever of the first
// pages looks most like artwork.
func (e *Extractor) ExtractCover(ctx context.Context, f File) (res result.Result[Cover]) {
	defer recoverInto(ctx, "cover", &res)

	if f.Container == models.ContainerEPUB {
		return epubCover(f.Data)
	}

	open, ok := e.openers[f.Container]
	if !ok {
		if f.Container == models.ContainerPDF {
			return result.NotFound[Cover]()
		}
		return result.Failed[Cover](errors.Errorf("unsupported container %q", f.Container))
	}

	pages, err := open(ctx, f.Data)
	if err != nil {
		return result.Failed[Cover](err)
	}
	defer pages.Close()

	return pageCover(ctx, pages)
}

func epubCover(data []byte) result.Result[Cover] {
	book, err := epub.Open(data)
	if err != nil {
		return result.Failed[Cover](err)
	}
	m, err := book.Cover()
	if m == nil {
		if err != nil {
			return result.Failed[Cover](err)
		}
		return result.NotFound[Cover]()
	}
	return result.Of(Cover{Data: m.CoverData, MimeType: m.CoverMimeType, Source: m.CoverSource})
}

// recoverInto turns a panic from a container parser into a failed result.
func recoverInto[T any](ctx context.Context, what string, res *result.Result[T]) {
	r := recover()
	if r == nil {
		return
	}
	err := errors.Errorf("%s extraction panicked: %v", what, r)
	logger.FromContext(ctx).Err(err).Error("recovered from extractor panic")
	*res = result.Failed[T](err)
}
