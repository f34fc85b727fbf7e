package testgen

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf16"
)

// PDF returns the bytes of a small uncompressed PDF with a correct xref
// table and an Info dictionary carrying the requested title and author.
func PDF(t *testing.T, opts PDFOptions) []byte {
	t.Helper()

	pages := opts.Pages
	if len(pages) == 0 {
		pages = []PDFPage{{}}
	}

	// 1: catalog, 2: pages, 3: info, then a page and a content stream per page.
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i*2)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		infoDict(opts),
	)
	for i, page := range pages {
		content := ""
		if page.Fill != nil {
			r, g, b, _ := page.Fill.RGBA()
			content = fmt.Sprintf("%.3f %.3f %.3f rg 0 0 612 792 re f",
				float64(r)/0xffff, float64(g)/0xffff, float64(b)/0xffff)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents %d 0 R >>", 5+i*2),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func infoDict(opts PDFOptions) string {
	var parts []string
	if opts.Title != "" {
		if opts.HexTitle {
			parts = append(parts, "/Title <"+utf16Hex(opts.Title)+">")
		} else {
			parts = append(parts, "/Title ("+escapePDF(opts.Title)+")")
		}
	}
	if opts.Author != "" {
		parts = append(parts, "/Author ("+escapePDF(opts.Author)+")")
	}
	parts = append(parts, "/Producer (testgen)")
	return "<< " + strings.Join(parts, " ") + " >>"
}

func escapePDF(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}

func utf16Hex(s string) string {
	var b strings.Builder
	b.WriteString("FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}
