package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"testing"
)

// EPUB returns the bytes of a valid EPUB: mimetype, container.xml,
// OEBPS/content.opf, one chapter and optionally a cover.
func EPUB(t *testing.T, opts EPUBOptions) []byte {
	t.Helper()

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	// mimetype must be first and uncompressed
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("failed to create mimetype entry: %v", err)
	}
	if _, err := w.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("failed to write mimetype: %v", err)
	}

	containerXML := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	if err := writeZipFile(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		t.Fatalf("failed to write container.xml: %v", err)
	}

	coverMimeType := opts.CoverMimeType
	if coverMimeType == "" {
		coverMimeType = "image/png"
	}
	coverPath := opts.CoverPath
	if coverPath == "" {
		coverPath = "cover.png"
		if coverMimeType == "image/jpeg" {
			coverPath = "cover.jpg"
		}
	}
	if opts.Cover != "" {
		if err := writeZipFile(zw, "OEBPS/"+coverPath, generateImage(t, coverMimeType)); err != nil {
			t.Fatalf("failed to write cover image: %v", err)
		}
	}

	if err := writeZipFile(zw, "OEBPS/content.opf", []byte(generateOPF(opts, coverPath, coverMimeType))); err != nil {
		t.Fatalf("failed to write content.opf: %v", err)
	}

	chapter := `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 1</title></head>
<body><h1>Chapter 1</h1><p>This is a test chapter.</p></body>
</html>`
	if err := writeZipFile(zw, "OEBPS/chapter1.xhtml", []byte(chapter)); err != nil {
		t.Fatalf("failed to write chapter1.xhtml: %v", err)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish EPUB: %v", err)
	}
	return out.Bytes()
}

func generateOPF(opts EPUBOptions, coverPath, coverMimeType string) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
`)
	if opts.Title != "" {
		buf.WriteString(fmt.Sprintf("    <dc:title id=\"title\">%s</dc:title>\n", escapeXML(opts.Title)))
	}
	for i, author := range opts.Authors {
		buf.WriteString(fmt.Sprintf("    <dc:creator id=\"creator%d\" opf:role=\"aut\">%s</dc:creator>\n", i, escapeXML(author)))
	}
	buf.WriteString("    <dc:identifier id=\"bookid\">urn:uuid:test-book-id</dc:identifier>\n")
	buf.WriteString("    <dc:language>en</dc:language>\n")
	switch opts.Cover {
	case CoverDeclared:
		buf.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	case CoverDeclaredMissing:
		buf.WriteString("    <meta name=\"cover\" content=\"missing-cover\"/>\n")
	}
	buf.WriteString("  </metadata>\n")

	buf.WriteString("  <manifest>\n")
	buf.WriteString("    <item id=\"chapter1\" href=\"chapter1.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	switch opts.Cover {
	case CoverDeclared:
		buf.WriteString(fmt.Sprintf("    <item id=\"cover-image\" href=\"%s\" media-type=\"%s\"/>\n", coverPath, coverMimeType))
	case CoverDeclaredEPUB3:
		buf.WriteString(fmt.Sprintf("    <item id=\"img1\" href=\"%s\" media-type=\"%s\" properties=\"cover-image\"/>\n", coverPath, coverMimeType))
	case CoverManifestOnly:
		buf.WriteString(fmt.Sprintf("    <item id=\"img1\" href=\"%s\" media-type=\"%s\"/>\n", coverPath, coverMimeType))
	case CoverDeclaredMissing:
		buf.WriteString(fmt.Sprintf("    <item id=\"missing-cover\" href=\"gone.png\" media-type=\"%s\"/>\n", coverMimeType))
		buf.WriteString(fmt.Sprintf("    <item id=\"img1\" href=\"%s\" media-type=\"%s\"/>\n", coverPath, coverMimeType))
	}
	buf.WriteString("  </manifest>\n")
	buf.WriteString("  <spine>\n    <itemref idref=\"chapter1\"/>\n  </spine>\n")
	buf.WriteString("</package>")

	return buf.String()
}
