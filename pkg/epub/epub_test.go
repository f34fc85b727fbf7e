package epub

import (
	"testing"

	"github.com/foliobooks/folio/internal/testgen"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Metadata(t *testing.T) {
	t.Parallel()

	data := testgen.EPUB(t, testgen.EPUBOptions{
		Title:   "The Dispossessed",
		Authors: []string{"Ursula K. Le Guin"},
	})

	book, err := Open(data)
	require.NoError(t, err)

	m := book.Metadata()
	assert.Equal(t, "The Dispossessed", m.Title)
	assert.Equal(t, "Ursula K. Le Guin", m.PrimaryAuthor())
	assert.Equal(t, models.DataSourceEPUBMetadata, m.DataSource)
	assert.False(t, m.HasCover())
}

func TestBook_Cover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      testgen.EPUBOptions
		mimeType  string
		source    string
		wantCover bool
	}{
		{
			name:      "declared epub2",
			opts:      testgen.EPUBOptions{Cover: testgen.CoverDeclared},
			mimeType:  "image/png",
			source:    CoverSourceDeclared,
			wantCover: true,
		},
		{
			name:      "declared epub3",
			opts:      testgen.EPUBOptions{Cover: testgen.CoverDeclaredEPUB3, CoverMimeType: "image/jpeg"},
			mimeType:  "image/jpeg",
			source:    CoverSourceDeclared,
			wantCover: true,
		},
		{
			name: "manifest only",
			opts: testgen.EPUBOptions{
				Cover:         testgen.CoverManifestOnly,
				CoverPath:     "images/cover.jpg",
				CoverMimeType: "image/jpeg",
			},
			mimeType:  "image/jpeg",
			source:    CoverSourceManifest,
			wantCover: true,
		},
		{
			name:      "declared but missing",
			opts:      testgen.EPUBOptions{Cover: testgen.CoverDeclaredMissing},
			mimeType:  "image/png",
			source:    CoverSourceManifest,
			wantCover: true,
		},
		{
			name: "no cover",
			opts: testgen.EPUBOptions{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			book, err := Open(testgen.EPUB(t, tt.opts))
			require.NoError(t, err)

			cover, err := book.Cover()
			if !tt.wantCover {
				assert.Nil(t, cover)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cover)
			assert.True(t, cover.HasCover())
			assert.Equal(t, tt.mimeType, cover.CoverMimeType)
			assert.Equal(t, tt.source, cover.CoverSource)
		})
	}
}

func TestOpen_NotAZip(t *testing.T) {
	t.Parallel()

	_, err := Open([]byte("this is not an archive"))
	require.Error(t, err)
}

func TestOpen_NoPackageDocument(t *testing.T) {
	t.Parallel()

	data := testgen.CBZ(t, testgen.CBZOptions{PageCount: 1})
	_, err := Open(data)
	require.Error(t, err)
}
