package mediafile

import (
	"fmt"
	"strings"
)

// ParsedAuthor is an author as declared by the container. Role is the
// container's own vocabulary (OPF "aut", ComicInfo "writer") or empty.
type ParsedAuthor struct {
	Name string
	Role string
}

// ParsedMetadata is what a container parser could read out of a book file.
// Any field may be empty.
type ParsedMetadata struct {
	Title         string
	Authors       []ParsedAuthor
	CoverMimeType string
	CoverData     []byte
	// CoverSource says how the cover was located, e.g. "declared" or
	// "manifest".
	CoverSource string
	// DataSource should be one of the models.DataSource values.
	DataSource string
}

func (m *ParsedMetadata) String() string {
	authorNames := make([]string, len(m.Authors))
	for i, a := range m.Authors {
		if a.Role != "" {
			authorNames[i] = fmt.Sprintf("%s (%s)", a.Name, a.Role)
		} else {
			authorNames[i] = a.Name
		}
	}
	return fmt.Sprintf("Title:           %s\nAuthor(s):       %s\nHas Cover Data:  %v\nCover Mime Type: %s\nCover Source:    %s\nData Source:     %s",
		m.Title, strings.Join(authorNames, ", "), len(m.CoverData) > 0, m.CoverMimeType, m.CoverSource, m.DataSource)
}

// PrimaryAuthor returns the first non-blank author name.
func (m *ParsedMetadata) PrimaryAuthor() string {
	for _, a := range m.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			return name
		}
	}
	return ""
}

func (m *ParsedMetadata) HasCover() bool {
	return len(m.CoverData) > 0
}

func (m *ParsedMetadata) CoverExtension() string {
	return ExtensionForMimeType(m.CoverMimeType)
}

// ExtensionForMimeType maps the image types book containers use to a file
// extension.
func ExtensionForMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
