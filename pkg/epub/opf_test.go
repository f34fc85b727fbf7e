package epub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOPF_MainTitle(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="sub">A Novel</dc:title>
    <dc:title id="main">The Left Hand of Darkness</dc:title>
    <meta refines="#sub" property="title-type">subtitle</meta>
    <meta refines="#main" property="title-type">main</meta>
  </metadata>
</package>`

	opf, err := ParseOPF("content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "The Left Hand of Darkness", opf.Title)
}

func TestParseOPF_Authors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		creator string
		want    []string
	}{
		{
			name: "epub2 roles",
			creator: `<dc:creator opf:role="aut">Ursula K. Le Guin</dc:creator>
    <dc:creator opf:role="ill">Some Illustrator</dc:creator>`,
			want: []string{"Ursula K. Le Guin"},
		},
		{
			name: "epub3 refined role",
			creator: `<dc:creator id="c1">Ursula K. Le Guin</dc:creator>
    <dc:creator id="c2">An Editor</dc:creator>
    <meta refines="#c1" property="role">aut</meta>
    <meta refines="#c2" property="role">edt</meta>`,
			want: []string{"Ursula K. Le Guin"},
		},
		{
			name:    "lone creator without role",
			creator: `<dc:creator>Ursula K. Le Guin</dc:creator>`,
			want:    []string{"Ursula K. Le Guin"},
		},
		{
			name: "several creators without roles",
			creator: `<dc:creator>One</dc:creator>
    <dc:creator>Two</dc:creator>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Book</dc:title>
    ` + tt.creator + `
  </metadata>
</package>`
			opf, err := ParseOPF("content.opf", strings.NewReader(opfXML))
			require.NoError(t, err)

			var got []string
			for _, a := range opf.Authors {
				got = append(got, a.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOPF_DeclaredCover(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Book</dc:title>
    <meta name="cover" content="cov"/>
  </metadata>
  <manifest>
    <item id="cov" href="../Images/Front%20Cover.jpg" media-type="image/jpeg"/>
  </manifest>
</package>`

	opf, err := ParseOPF("OEBPS/Text/content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/Images/Front Cover.jpg", opf.CoverFilepath)
	assert.Equal(t, "image/jpeg", opf.CoverMimeType)
}

func TestParseOPF_DeclaredCoverByHref(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <meta name="cover" content="images/front.png"/>
  </metadata>
  <manifest>
    <item id="x" href="images/front.png" media-type="image/png"/>
  </manifest>
</package>`

	opf, err := ParseOPF("content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "images/front.png", opf.CoverFilepath)
}

func TestParseOPF_CoverImageProperty(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="i1" href="img/a.webp" media-type="image/webp" properties="cover-image svg"/>
  </manifest>
</package>`

	opf, err := ParseOPF("OPS/package.opf", strings.NewReader(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "OPS/img/a.webp", opf.CoverFilepath)
	assert.Equal(t, "image/webp", opf.CoverMimeType)
}

func TestOPF_CoverCandidates(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <manifest>
    <item id="coverpage" href="cover.xhtml" media-type="application/xhtml+xml"/>
    <item id="i1" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="i2" href="images/map.jpg" media-type="image/jpeg"/>
    <item id="CoverArt" href="images/art.png"/>
  </manifest>
</package>`

	opf, err := ParseOPF("content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)
	assert.Empty(t, opf.CoverFilepath)

	candidates := opf.CoverCandidates()
	require.Len(t, candidates, 2)
	assert.Equal(t, "images/cover.jpg", candidates[0].Path)
	assert.Equal(t, "images/art.png", candidates[1].Path)
}

func TestParseOPF_Malformed(t *testing.T) {
	t.Parallel()
	_, err := ParseOPF("content.opf", strings.NewReader("<package><metadata>"))
	require.Error(t, err)
}
