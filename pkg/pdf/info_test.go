package pdf

import (
	"testing"

	"github.com/foliobooks/folio/internal/testgen"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   testgen.PDFOptions
		title  string
		author string
	}{
		{
			name:   "literal strings",
			opts:   testgen.PDFOptions{Title: "Foundation", Author: "Isaac Asimov"},
			title:  "Foundation",
			author: "Isaac Asimov",
		},
		{
			name:   "escaped parentheses",
			opts:   testgen.PDFOptions{Title: "Dune (Deluxe)", Author: "Frank Herbert"},
			title:  "Dune (Deluxe)",
			author: "Frank Herbert",
		},
		{
			name:   "utf-16 hex title",
			opts:   testgen.PDFOptions{Title: "Cien años de soledad", Author: "Gabriel Garcia Marquez", HexTitle: true},
			title:  "Cien años de soledad",
			author: "Gabriel Garcia Marquez",
		},
		{
			name: "no info entries",
			opts: testgen.PDFOptions{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := ReadInfo(testgen.PDF(t, tt.opts))
			require.NoError(t, err)
			assert.Equal(t, tt.title, m.Title)
			assert.Equal(t, tt.author, m.PrimaryAuthor())
			assert.Equal(t, models.DataSourcePDFMetadata, m.DataSource)
		})
	}
}

func TestReadInfo_NotAPDF(t *testing.T) {
	t.Parallel()

	_, err := ReadInfo([]byte("PK\x03\x04 definitely a zip"))
	require.Error(t, err)
}

func TestReadInfo_BrokenXref(t *testing.T) {
	t.Parallel()

	data := []byte("%PDF-1.4\n3 0 obj\n<< /Title (Snow Crash) /Author (Neal Stephenson) >>\nendobj\ntrailer\n<< /Info 3 0 R >>\n%%EOF\n")
	m, err := ReadInfo(data)
	require.NoError(t, err)
	assert.Equal(t, "Snow Crash", m.Title)
	assert.Equal(t, "Neal Stephenson", m.PrimaryAuthor())
}

func TestLooksValid(t *testing.T) {
	t.Parallel()

	assert.True(t, LooksValid([]byte("%PDF-1.7\n")))
	assert.True(t, LooksValid(append([]byte("junk before header "), []byte("%PDF-1.3")...)))
	assert.False(t, LooksValid([]byte("not a pdf")))
	assert.False(t, LooksValid(nil))
}

func TestDecodeHex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hi", decodeHex("4869"))
	assert.Equal(t, "Hi", decodeHex("FEFF 0048 0069"))
	assert.Equal(t, "P", decodeHex("5"))
}
