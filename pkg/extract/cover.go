package extract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/foliobooks/folio/pkg/result"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const CoverSourcePage = "page"

const (
	coverPagesScanned = 2
	coverRenderScale  = 0.4
	sampleStride      = 60
	// inkThreshold is the channel value below which a sampled pixel is not
	// paper.
	inkThreshold = 245
	// colorSpread is the pairwise channel difference above which an ink
	// pixel counts as colored.
	colorSpread  = 20
	minFillRatio = 0.05
	minPageScore = 8
	jpegQuality  = 85
)

// PageScore rates how much img looks like cover artwork rather than a page
// of text. Every sampleStride-th pixel is inspected; colored ink weighs
// double. Pages that are almost blank score 0.
func PageScore(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h

	var sampled, ink, weight int
	for i := 0; i < total; i += sampleStride {
		sampled++
		r, g, bl, ok := channels(img.At(b.Min.X+i%w, b.Min.Y+i/w))
		if !ok {
			continue
		}
		if r >= inkThreshold && g >= inkThreshold && bl >= inkThreshold {
			continue
		}
		ink++
		if spread(r, g, bl) > colorSpread {
			weight += 2
		} else {
			weight++
		}
	}
	if sampled == 0 {
		return 0
	}

	fillRatio := float64(ink) / float64(sampled)
	if fillRatio < minFillRatio {
		return 0
	}
	return float64(weight) * fillRatio
}

// channels returns 8-bit RGB. Fully transparent pixels read as paper.
func channels(c color.Color) (r, g, b int, ok bool) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A == 0 {
		return 0, 0, 0, false
	}
	return int(n.R), int(n.G), int(n.B), true
}

func spread(r, g, b int) int {
	return max(abs(r-g), abs(r-b), abs(g-b))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func pageCover(ctx context.Context, pages PageSource) result.Result[Cover] {
	log := logger.FromContext(ctx)

	var (
		best      image.Image
		bestScore float64
		lastErr   error
	)
	for i := 0; i < min(coverPagesScanned, pages.PageCount()); i++ {
		img, err := pages.RenderPage(ctx, i, coverRenderScale)
		if err != nil {
			log.Err(err).Warn("failed to render page", logger.Data{"page": i})
			lastErr = err
			continue
		}
		score := PageScore(img)
		if score > bestScore {
			best, bestScore = img, score
		}
	}

	if best == nil || bestScore <= minPageScore {
		if best == nil && lastErr != nil {
			return result.Failed[Cover](lastErr)
		}
		return result.NotFound[Cover]()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, best, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return result.Failed[Cover](errors.WithStack(err))
	}
	return result.Of(Cover{Data: buf.Bytes(), MimeType: "image/jpeg", Source: CoverSourcePage})
}
