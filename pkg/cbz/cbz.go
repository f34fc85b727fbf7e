package cbz

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"path"
	"sort"
	"strings"

	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

const roleWriter = "writer"

type ComicInfo struct {
	XMLName   xml.Name `xml:"ComicInfo"`
	Title     string   `xml:"Title"`
	Series    string   `xml:"Series"`
	Number    string   `xml:"Number"`
	Writer    string   `xml:"Writer"`
	PageCount string   `xml:"PageCount"`
}

// Archive is an opened comic book archive: a zip of page images with an
// optional ComicInfo.xml.
type Archive struct {
	ComicInfo *ComicInfo
	pages     []*zip.File
}

// Open reads the archive held in data. It fails only when data is not a zip
// at all; a zip without pages opens with PageCount 0.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	a := &Archive{}
	for _, file := range zr.File {
		switch {
		case strings.EqualFold(path.Base(file.Name), "comicinfo.xml"):
			r, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			a.ComicInfo, err = ParseComicInfo(r)
			if err != nil {
				return nil, err
			}
		case isPageImage(file.Name):
			a.pages = append(a.pages, file)
		}
	}

	sort.Slice(a.pages, func(i, j int) bool {
		return a.pages[i].Name < a.pages[j].Name
	})

	return a, nil
}

func ParseComicInfo(r io.ReadCloser) (*ComicInfo, error) {
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	comicInfo := &ComicInfo{}
	err = xml.Unmarshal(b, comicInfo)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return comicInfo, nil
}

// Metadata returns the ComicInfo title and writers, if the archive has one.
func (a *Archive) Metadata() *mediafile.ParsedMetadata {
	m := &mediafile.ParsedMetadata{DataSource: models.DataSourceCBZMetadata}
	if a.ComicInfo == nil {
		return m
	}
	m.Title = strings.TrimSpace(a.ComicInfo.Title)
	for _, name := range splitCreators(a.ComicInfo.Writer) {
		m.Authors = append(m.Authors, mediafile.ParsedAuthor{Name: name, Role: roleWriter})
	}
	return m
}

func (a *Archive) PageCount() int {
	return len(a.pages)
}

// RenderPage decodes page index and scales it by scale.
func (a *Archive) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	if index < 0 || index >= len(a.pages) {
		return nil, errors.Errorf("page %d out of range [0,%d)", index, len(a.pages))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := a.pages[index].Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer r.Close()

	src, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", a.pages[index].Name)
	}
	return Scale(src, scale), nil
}

func (a *Archive) Close() error {
	return nil
}

// Scale resizes img by factor, never below 1x1.
func Scale(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor+0.5))
	h := max(1, int(float64(b.Dy())*factor+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func isPageImage(name string) bool {
	if strings.HasPrefix(path.Base(name), ".") || strings.HasPrefix(name, "__MACOSX/") {
		return false
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

func splitCreators(creators string) []string {
	if creators == "" {
		return nil
	}

	parts := strings.Split(creators, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
