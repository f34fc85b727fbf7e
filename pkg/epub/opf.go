package epub

import (
	"encoding/xml"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/pkg/errors"
)

type OPF struct {
	Title   string
	Authors []mediafile.ParsedAuthor
	// CoverFilepath is the archive path of the declared cover, if any.
	CoverFilepath string
	CoverMimeType string
	// Items are the manifest entries with their hrefs resolved to archive
	// paths, in manifest order.
	Items []ManifestItem
}

type ManifestItem struct {
	ID         string
	Path       string
	MediaType  string
	Properties string
}

type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Role   string `xml:"role,attr"`
			FileAs string `xml:"file-as,attr"`
		} `xml:"creator"`
		Meta []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

func ParseOPF(filename string, r io.Reader) (*OPF, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	err = xml.Unmarshal(b, pkg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Manifest hrefs are relative to the OPF file.
	basePath := path.Dir(filename)
	if basePath == "." {
		basePath = ""
	}

	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.TrimPrefix(m.Refines, "#")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = strings.TrimSpace(m.Text)
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	title := ""
	for _, t := range pkg.Metadata.Title {
		if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
			title = t.Text
			break
		}
	}
	if title == "" && len(pkg.Metadata.Title) > 0 {
		title = pkg.Metadata.Title[0].Text
	}

	authors := []mediafile.ParsedAuthor{}
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		// A lone creator without a role is the author.
		if role == "aut" || (role == "" && len(pkg.Metadata.Creator) == 1) {
			authors = append(authors, mediafile.ParsedAuthor{Name: strings.TrimSpace(creator.Text), Role: role})
		}
	}

	opf := &OPF{
		Title:   strings.TrimSpace(title),
		Authors: authors,
	}

	for _, item := range pkg.Manifest.Item {
		opf.Items = append(opf.Items, ManifestItem{
			ID:         item.ID,
			Path:       resolveHref(basePath, item.Href),
			MediaType:  item.MediaType,
			Properties: item.Properties,
		})
	}

	// EPUB 2 declares the cover with <meta name="cover" content="<item id>">,
	// EPUB 3 with a cover-image manifest property.
	if id := metaContent["cover"]; id != "" {
		for _, item := range opf.Items {
			if item.ID == id || item.Path == resolveHref(basePath, id) {
				opf.CoverFilepath = item.Path
				opf.CoverMimeType = item.MediaType
				break
			}
		}
	}
	if opf.CoverFilepath == "" {
		for _, item := range opf.Items {
			if hasProperty(item.Properties, "cover-image") {
				opf.CoverFilepath = item.Path
				opf.CoverMimeType = item.MediaType
				break
			}
		}
	}

	return opf, nil
}

// CoverCandidates lists image resources whose id or path mentions "cover",
// for books that never declared one.
func (o *OPF) CoverCandidates() []ManifestItem {
	var candidates []ManifestItem
	for _, item := range o.Items {
		if !isImage(item) {
			continue
		}
		if strings.Contains(strings.ToLower(item.ID), "cover") || strings.Contains(strings.ToLower(item.Path), "cover") {
			candidates = append(candidates, item)
		}
	}
	return candidates
}

func resolveHref(basePath, href string) string {
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	return strings.TrimPrefix(path.Clean(path.Join(basePath, href)), "/")
}

func hasProperty(properties, property string) bool {
	for _, p := range strings.Fields(properties) {
		if p == property {
			return true
		}
	}
	return false
}

func isImage(item ManifestItem) bool {
	if strings.HasPrefix(item.MediaType, "image/") {
		return true
	}
	if item.MediaType != "" {
		return false
	}
	return mimeTypeForPath(item.Path) != ""
}

func mimeTypeForPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return ""
}
