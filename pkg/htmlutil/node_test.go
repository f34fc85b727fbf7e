package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestFindAndText(t *testing.T) {
	t.Parallel()

	doc, err := html.Parse(strings.NewReader(`<html><body>
<div class="row">
  <img class="thumb bookCover" src="/a.jpg">
  <a class="authorName" href="/x"><span>Ursula</span>
     <span>K. Le Guin</span></a>
</div></body></html>`))
	require.NoError(t, err)

	img := Find(doc, Element("img", "bookCover"))
	require.NotNil(t, img)
	assert.Equal(t, "/a.jpg", Attr(img, "src"))
	assert.Empty(t, Attr(img, "alt"))

	a := Find(doc, Element("a", "authorName"))
	require.NotNil(t, a)
	assert.Equal(t, "Ursula K. Le Guin", Text(a))

	assert.Nil(t, Find(doc, Element("img", "missing")))
	assert.Nil(t, Find(nil, Element("a", "")))
}

func TestHasClass(t *testing.T) {
	t.Parallel()

	n := &html.Node{Type: html.ElementNode, Data: "a", Attr: []html.Attribute{{Key: "class", Val: "x  authorName y"}}}
	assert.True(t, HasClass(n, "authorName"))
	assert.False(t, HasClass(n, "author"))
	assert.False(t, HasClass(&html.Node{Type: html.TextNode}, "x"))
}
