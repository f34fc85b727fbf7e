package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"testing"
)

// CBZ returns the bytes of a comic archive with PNG pages named 000.png,
// 001.png, ... and an optional ComicInfo.xml.
func CBZ(t *testing.T, opts CBZOptions) []byte {
	t.Helper()

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	if opts.HasComicInfo {
		var info bytes.Buffer
		info.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<ComicInfo>\n")
		if opts.Title != "" {
			info.WriteString(fmt.Sprintf("  <Title>%s</Title>\n", escapeXML(opts.Title)))
		}
		if opts.Writer != "" {
			info.WriteString(fmt.Sprintf("  <Writer>%s</Writer>\n", escapeXML(opts.Writer)))
		}
		info.WriteString("</ComicInfo>")
		if err := writeZipFile(zw, "ComicInfo.xml", info.Bytes()); err != nil {
			t.Fatalf("failed to write ComicInfo.xml: %v", err)
		}
	}

	pages := make([][]byte, 0, len(opts.Pages))
	for _, img := range opts.Pages {
		pages = append(pages, Encode(t, img, "image/png"))
	}
	if len(pages) == 0 {
		count := opts.PageCount
		if count <= 0 {
			count = 3
		}
		for i := 0; i < count; i++ {
			pages = append(pages, generateImage(t, "image/png"))
		}
	}
	for i, data := range pages {
		if err := writeZipFile(zw, fmt.Sprintf("%03d.png", i), data); err != nil {
			t.Fatalf("failed to write page %d: %v", i, err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish CBZ: %v", err)
	}
	return out.Bytes()
}
