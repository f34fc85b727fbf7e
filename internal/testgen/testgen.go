// Package testgen builds book files in memory (EPUB, CBZ, PDF) with
// configurable metadata and covers for exercising the extractors.
package testgen

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

const (
	// CoverDeclared writes the cover and declares it in the OPF metadata.
	CoverDeclared = "declared"
	// CoverDeclaredEPUB3 declares the cover with the cover-image property.
	CoverDeclaredEPUB3 = "declared-epub3"
	// CoverManifestOnly writes the cover as a manifest item without any
	// declaration.
	CoverManifestOnly = "manifest-only"
	// CoverDeclaredMissing declares a cover whose file is not in the archive
	// while a "cover"-named image still is.
	CoverDeclaredMissing = "declared-missing"
)

// EPUBOptions configures the generated EPUB.
type EPUBOptions struct {
	Title   string
	Authors []string
	// Cover is one of the Cover* constants, or empty for no cover.
	Cover string
	// CoverPath is the archive path of the cover relative to the OPF, e.g.
	// "images/cover.jpg". Defaults to "cover.png" or "cover.jpg".
	CoverPath     string
	CoverMimeType string // "image/jpeg" or "image/png", defaults to "image/png"
}

// CBZOptions configures the generated CBZ.
type CBZOptions struct {
	Title        string
	Writer       string
	HasComicInfo bool
	// Pages are encoded as PNG in order. When empty, PageCount solid blue
	// pages are written.
	Pages     []image.Image
	PageCount int
}

// PDFOptions configures the generated PDF.
type PDFOptions struct {
	Title  string
	Author string
	// HexTitle writes the title as a UTF-16BE hex string.
	HexTitle bool
	// Pages defaults to a single blank page.
	Pages []PDFPage
}

// PDFPage is a US Letter page, optionally painted edge to edge with Fill.
type PDFPage struct {
	Fill color.Color
}

// SolidImage returns a w×h image filled with c.
func SolidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// Encode encodes img as PNG or JPEG depending on mimeType.
func Encode(t *testing.T, img image.Image, mimeType string) []byte {
	t.Helper()

	var buf bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("failed to encode JPEG: %v", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("failed to encode PNG: %v", err)
		}
	}
	return buf.Bytes()
}

func generateImage(t *testing.T, mimeType string) []byte {
	t.Helper()
	return Encode(t, SolidImage(100, 100, color.RGBA{0, 100, 200, 255}), mimeType)
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
