package filename

import (
	"testing"

	"github.com/foliobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestParseFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		title  string
		author string
	}{
		{
			name:   "author first with noise",
			input:  "Isaac_Asimov_-_Foundation_(retail)_9780553293357.epub",
			title:  "Foundation",
			author: "Isaac Asimov",
		},
		{
			name:   "long title keeps library words out of the author",
			input:  "The Library of Babel Collection - Jorge Luis Borges.pdf",
			title:  "The Library of Babel Collection",
			author: "Jorge Luis Borges",
		},
		{
			name:   "promotional segment is dropped",
			input:  "Frank Herbert - Dune - Download Full Edition.epub",
			title:  "Dune",
			author: "Frank Herbert",
		},
		{
			name:   "no separator",
			input:  "Foundation.epub",
			title:  "Foundation",
			author: models.UnknownAuthor,
		},
		{
			name:   "bracketed source tags and hyphenated ISBN",
			input:  "[Z-Library] Ursula K. Le Guin - The Dispossessed 978-0-06-051275-4.epub",
			title:  "The Dispossessed",
			author: "Ursula K. Le Guin",
		},
		{
			name:   "hex id only falls back to the raw name",
			input:  "d41d8cd98f00b204e9800998ecf8427e.pdf",
			title:  "d41d8cd98f00b204e9800998ecf8427e",
			author: models.UnknownAuthor,
		},
		{
			name:   "decimal numbering is not an extension",
			input:  "Saga Vol 2.5",
			title:  "Saga Vol 2.5",
			author: models.UnknownAuthor,
		},
		{
			name:   "directories are ignored",
			input:  "/uploads/tmp/Octavia Butler - Kindred.epub",
			title:  "Kindred",
			author: "Octavia Butler",
		},
		{
			name:   "empty",
			input:  "",
			title:  "Untitled",
			author: models.UnknownAuthor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			parsed := ParseFilename(tt.input)
			assert.Equal(t, tt.title, parsed.Title)
			assert.Equal(t, tt.author, parsed.Author)
		})
	}
}

func TestParseFilename_Total(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", ".", "/", "-", " - ", "()", "[]", ".epub", "___", "- - -",
		"\x00\xff", "((((", "]]]]", "a - b - c - d - e", "Library - Library",
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() {
			parsed := ParseFilename(input)
			assert.NotEmpty(t, parsed.Title, "input %q", input)
			assert.NotEmpty(t, parsed.Author, "input %q", input)
		})
	}
}

func TestCleanDisplayText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"  The__Hobbit  -  Download ", "The Hobbit"},
		{"Jean-Paul Sartre", "Jean-Paul Sartre"},
		{"FULL EDITION Dune", "Dune"},
		{"Dune_-_Messiah", "Dune Messiah"},
		{"free download - The Left Hand of Darkness", "The Left Hand of Darkness"},
		{"Neuromancer www.ebooks4all.com", "Neuromancer"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CleanDisplayText(tt.input), "input %q", tt.input)
	}
}

func TestCleanDisplayText_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"a-download-b",
		"--Dune--",
		"_ _ _ Full _ Edition _ _",
		"Download download DOWNLOAD",
		"The Fellowship of the Ring - - - ebook",
		"  spaced\tout\nname  ",
		"The Name of the Wind (Kingkiller #1)",
		"— em — dashes —",
	}
	for _, input := range inputs {
		once := CleanDisplayText(input)
		assert.Equal(t, once, CleanDisplayText(once), "input %q", input)
	}
}
