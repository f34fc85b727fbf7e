package ingest

import (
	"path"
	"strings"

	"github.com/foliobooks/folio/pkg/cbz"
	"github.com/foliobooks/folio/pkg/epub"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/pdf"
	"github.com/gabriel-vasile/mimetype"
)

const (
	mimeEPUB = "application/epub+zip"
	mimePDF  = "application/pdf"
	mimeCBZ  = "application/vnd.comicbook+zip"
	mimeZip  = "application/zip"
)

type Detected struct {
	Container   string
	Format      string
	ContentType string
}

var containers = map[string]Detected{
	models.ContainerEPUB: {models.ContainerEPUB, models.FormatReflowable, mimeEPUB},
	models.ContainerPDF:  {models.ContainerPDF, models.FormatFixedPage, mimePDF},
	models.ContainerCBZ:  {models.ContainerCBZ, models.FormatFixedPage, mimeCBZ},
}

// DetectFormat decides which container a file is. A definitive content
// signature wins over the name. A bare zip falls back to the extension and
// then the declared content type, so comic archives are recognized without
// needing a signature of their own.
func DetectFormat(filename, declared string, data []byte) (Detected, error) {
	byName := containerForExtension(filename)
	byDeclared := containerForMimeType(declared)

	sniffed := mimetype.Detect(data)
	switch {
	case sniffed.Is(mimeEPUB):
		return containers[models.ContainerEPUB], nil
	case sniffed.Is(mimePDF):
		return containers[models.ContainerPDF], nil
	case isA(sniffed, mimeZip):
		if byName == models.ContainerEPUB || byName == models.ContainerCBZ {
			return containers[byName], nil
		}
		if byDeclared == models.ContainerEPUB || byDeclared == models.ContainerCBZ {
			return containers[byDeclared], nil
		}
		return Detected{}, errcodes.UnsupportedFormat(filename)
	}

	// Unrecognized bytes under a known name are a broken book, which
	// validation reports as such.
	if byName != "" {
		return containers[byName], nil
	}
	if byDeclared != "" {
		return containers[byDeclared], nil
	}
	return Detected{}, errcodes.UnsupportedFormat(filename)
}

// isA reports whether m is mimeType or one of its subtypes, e.g. a jar is
// also a zip.
func isA(m *mimetype.MIME, mimeType string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mimeType) {
			return true
		}
	}
	return false
}

func containerForExtension(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".epub":
		return models.ContainerEPUB
	case ".pdf":
		return models.ContainerPDF
	case ".cbz":
		return models.ContainerCBZ
	}
	return ""
}

func containerForMimeType(contentType string) string {
	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	switch strings.TrimSpace(mt) {
	case mimeEPUB:
		return models.ContainerEPUB
	case mimePDF:
		return models.ContainerPDF
	case mimeCBZ, "application/x-cbz":
		return models.ContainerCBZ
	}
	return ""
}

// validate makes sure the container opens at all. Anything finer grained
// is left to the background extractor.
func validate(container string, data []byte) error {
	switch container {
	case models.ContainerEPUB:
		if _, err := epub.Open(data); err != nil {
			return errcodes.CorruptFile(strings.ToUpper(container))
		}
	case models.ContainerCBZ:
		a, err := cbz.Open(data)
		if err != nil {
			return errcodes.CorruptFile(strings.ToUpper(container))
		}
		defer a.Close()
		if a.PageCount() == 0 {
			return errcodes.CorruptFile(strings.ToUpper(container))
		}
	case models.ContainerPDF:
		if !pdf.LooksValid(data) {
			return errcodes.CorruptFile(strings.ToUpper(container))
		}
	}
	return nil
}
