package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
)

const (
	CoverSourceDeclared = "declared"
	CoverSourceManifest = "manifest"
)

// maxCoverSize caps how much of a single archive entry is read as a cover.
const maxCoverSize = 32 << 20

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// Book is an opened EPUB archive.
type Book struct {
	zip     *zip.Reader
	opfPath string
	OPF     *OPF
}

// Open reads the archive held in data and parses its package document.
func Open(data []byte) (*Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	b := &Book{zip: zr}
	b.opfPath = b.findOPF()
	if b.opfPath == "" {
		return nil, errors.New("no opf file found")
	}

	f := b.file(b.opfPath)
	if f == nil {
		return nil, errors.Errorf("opf file %q is missing", b.opfPath)
	}
	r, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer r.Close()

	b.OPF, err = ParseOPF(b.opfPath, r)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Metadata returns the declared title and authors. It never includes a
// cover; see Cover.
func (b *Book) Metadata() *mediafile.ParsedMetadata {
	return &mediafile.ParsedMetadata{
		Title:      b.OPF.Title,
		Authors:    b.OPF.Authors,
		DataSource: models.DataSourceEPUBMetadata,
	}
}

// Cover returns the declared cover image, or failing that the first
// manifest image whose id or path mentions "cover". It returns nil when the
// book has neither.
func (b *Book) Cover() (*mediafile.ParsedMetadata, error) {
	var lastErr error

	if b.OPF.CoverFilepath != "" {
		data, err := b.read(b.OPF.CoverFilepath)
		if err == nil && len(data) > 0 {
			return b.coverMetadata(data, b.OPF.CoverMimeType, b.OPF.CoverFilepath, CoverSourceDeclared), nil
		}
		lastErr = err
	}

	for _, item := range b.OPF.CoverCandidates() {
		data, err := b.read(item.Path)
		if err != nil {
			lastErr = err
			continue
		}
		if len(data) == 0 {
			continue
		}
		return b.coverMetadata(data, item.MediaType, item.Path, CoverSourceManifest), nil
	}

	return nil, lastErr
}

func (b *Book) coverMetadata(data []byte, mimeType, p, source string) *mediafile.ParsedMetadata {
	if mimeType == "" {
		mimeType = mimeTypeForPath(p)
	}
	return &mediafile.ParsedMetadata{
		CoverData:     data,
		CoverMimeType: mimeType,
		CoverSource:   source,
		DataSource:    models.DataSourceEPUBMetadata,
	}
}

func (b *Book) findOPF() string {
	if f := b.file("META-INF/container.xml"); f != nil {
		if r, err := f.Open(); err == nil {
			var c container
			err = xml.NewDecoder(r).Decode(&c)
			r.Close()
			if err == nil {
				for _, rf := range c.Rootfiles {
					if rf.FullPath != "" && b.file(rf.FullPath) != nil {
						return rf.FullPath
					}
				}
			}
		}
	}
	for _, f := range b.zip.File {
		if strings.EqualFold(path.Ext(f.Name), ".opf") {
			return f.Name
		}
	}
	return ""
}

// file finds an archive entry, falling back to a case-insensitive match
// since manifests written on case-insensitive filesystems drift.
func (b *Book) file(name string) *zip.File {
	name = strings.TrimPrefix(name, "/")
	var fold *zip.File
	for _, f := range b.zip.File {
		if f.Name == name {
			return f
		}
		if fold == nil && strings.EqualFold(f.Name, name) {
			fold = f
		}
	}
	return fold
}

func (b *Book) read(name string) ([]byte, error) {
	f := b.file(name)
	if f == nil {
		return nil, errors.Errorf("%q is not in the archive", name)
	}
	r, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, maxCoverSize))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}
