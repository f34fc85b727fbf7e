// Package pdf reads document info and renders pages of PDF files.
package pdf

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
)

// headerWindow is how far into the file the %PDF- marker may appear.
// Readers tolerate leading junk and so do we.
const headerWindow = 1024

// scanWindow bounds the raw Info scan at each end of the file.
const scanWindow = 64 << 10

var (
	pdfHeader = []byte("%PDF-")

	literalFieldRE = map[string]*regexp.Regexp{
		"Title":  regexp.MustCompile(`/Title\s*\(((?:\\.|[^\\)])*)\)`),
		"Author": regexp.MustCompile(`/Author\s*\(((?:\\.|[^\\)])*)\)`),
	}
	hexFieldRE = map[string]*regexp.Regexp{
		"Title":  regexp.MustCompile(`/Title\s*<([0-9A-Fa-f\s]+)>`),
		"Author": regexp.MustCompile(`/Author\s*<([0-9A-Fa-f\s]+)>`),
	}
)

func init() {
	// pdfcpu otherwise creates a config directory under the user's home.
	api.DisableConfigDir()
}

// LooksValid reports whether data starts like a PDF document.
func LooksValid(data []byte) bool {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	return bytes.Contains(window, pdfHeader)
}

// ReadInfo returns the document-info title and author. Only the Info
// dictionary is consulted; XMP metadata streams are ignored.
func ReadInfo(data []byte) (*mediafile.ParsedMetadata, error) {
	if !LooksValid(data) {
		return nil, errors.New("not a PDF document")
	}

	title, author, err := readInfoWithPDFCPU(data)
	if err != nil || (title == "" && author == "") {
		// Broken xref tables are common in the wild; the raw dictionary scan
		// still finds the Info entries in most of them.
		title, author = scanInfo(data)
	}

	m := &mediafile.ParsedMetadata{
		Title:      strings.TrimSpace(title),
		DataSource: models.DataSourcePDFMetadata,
	}
	if author = strings.TrimSpace(author); author != "" {
		m.Authors = []mediafile.ParsedAuthor{{Name: author}}
	}
	return m, nil
}

func readInfoWithPDFCPU(data []byte) (title, author string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("pdfcpu panicked: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadAndValidate(bytes.NewReader(data), conf)
	if err != nil {
		return "", "", errors.WithStack(err)
	}
	return ctx.Title, ctx.Author, nil
}

func scanInfo(data []byte) (title, author string) {
	text := string(data)
	if len(data) > 2*scanWindow {
		text = string(data[:scanWindow]) + "\n" + string(data[len(data)-scanWindow:])
	}
	return scanField(text, "Title"), scanField(text, "Author")
}

func scanField(text, field string) string {
	if m := literalFieldRE[field].FindStringSubmatch(text); len(m) > 1 {
		return decodeLiteral(m[1])
	}
	if m := hexFieldRE[field].FindStringSubmatch(text); len(m) > 1 {
		return decodeHex(m[1])
	}
	return ""
}

func decodeLiteral(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t", `\(`, "(", `\)`, ")", `\\`, `\`)
	return strings.TrimSpace(r.Replace(s))
}

// decodeHex decodes a hex string, treating a FEFF prefix as UTF-16BE.
func decodeHex(hex string) string {
	hex = strings.Join(strings.Fields(hex), "")
	if len(hex)%2 != 0 {
		hex += "0"
	}
	raw := make([]byte, len(hex)/2)
	for i := range raw {
		raw[i] = hexValue(hex[i*2])<<4 | hexValue(hex[i*2+1])
	}

	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		raw = raw[2:]
		u16 := make([]uint16, len(raw)/2)
		for i := range u16 {
			u16[i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
		}
		return strings.TrimSpace(string(utf16.Decode(u16)))
	}
	return strings.TrimSpace(string(raw))
}

func hexValue(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
