package pdf

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"
)

const pointsPerInch = 72

// Renderer rasterizes PDF pages with PDFium running in WebAssembly, so no
// native library is needed. The runtime is started on first use.
type Renderer struct {
	instances   int
	instanceTTL time.Duration

	once    sync.Once
	pool    pdfium.Pool
	initErr error
}

func NewRenderer(instances int, instanceWait time.Duration) *Renderer {
	if instances < 1 {
		instances = 1
	}
	return &Renderer{instances: instances, instanceTTL: instanceWait}
}

func (r *Renderer) init() error {
	r.once.Do(func() {
		r.pool, r.initErr = webassembly.Init(webassembly.Config{
			MinIdle:  1,
			MaxIdle:  r.instances,
			MaxTotal: r.instances,
		})
		r.initErr = errors.Wrap(r.initErr, "failed to start pdfium")
	})
	return r.initErr
}

// Open loads data into a PDFium instance. The returned Document holds the
// instance until it is closed.
func (r *Renderer) Open(ctx context.Context, data []byte) (*Document, error) {
	if err := r.init(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	instance, err := r.pool.GetInstance(r.instanceTTL)
	if err != nil {
		return nil, errors.Wrap(err, "no pdfium instance available")
	}

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		_ = instance.Close()
		return nil, errors.Wrap(err, "failed to open document")
	}

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		_, _ = instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		_ = instance.Close()
		return nil, errors.Wrap(err, "failed to count pages")
	}

	return &Document{instance: instance, doc: doc.Document, pages: count.PageCount}, nil
}

// Close shuts down the WebAssembly runtime.
func (r *Renderer) Close() error {
	if r.pool == nil {
		return nil
	}
	return errors.WithStack(r.pool.Close())
}

// Document is an open PDF bound to one PDFium instance. It is not safe for
// concurrent use.
type Document struct {
	instance pdfium.Pdfium
	doc      references.FPDF_DOCUMENT
	pages    int
}

func (d *Document) PageCount() int {
	return d.pages
}

// RenderPage rasterizes page index at scale times its natural 72 DPI size.
func (d *Document) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	if index < 0 || index >= d.pages {
		return nil, errors.Errorf("page %d out of range [0,%d)", index, d.pages)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dpi := max(1, int(pointsPerInch*scale+0.5))
	res, err := d.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: dpi,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{Document: d.doc, Index: index},
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to render page %d", index)
	}
	defer res.Cleanup()

	// The bitmap is released by Cleanup, so copy it out first.
	src := res.Result.Image
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}

func (d *Document) Close() error {
	_, err := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: d.doc})
	closeErr := d.instance.Close()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(closeErr)
}
