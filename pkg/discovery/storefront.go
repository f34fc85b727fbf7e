package discovery

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/htmlutil"
	"github.com/foliobooks/folio/pkg/result"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// sizeSuffixRE matches the thumbnail size marker in storefront image URLs,
// e.g. "._SY75_." in "12345._SY75_.jpg".
var sizeSuffixRE = regexp.MustCompile(`\._S[XY]\d+_\.`)

// StorefrontStrategy scrapes the first result off a bookstore search page.
// The page is fetched through a proxy, trying the primary template and then
// the secondary one.
type StorefrontStrategy struct {
	fetch     *fetcher
	searchURL string
	proxies   []string
}

func NewStorefrontStrategy(cfg *config.Config, client *http.Client) *StorefrontStrategy {
	var proxies []string
	for _, p := range []string{cfg.StorefrontProxyPrimary, cfg.StorefrontProxySecondary} {
		if p != "" {
			proxies = append(proxies, p)
		}
	}
	return &StorefrontStrategy{
		fetch:     newFetcher(client, cfg.DiscoveryRequestsPerSec),
		searchURL: cfg.StorefrontSearchURL,
		proxies:   proxies,
	}
}

func (s *StorefrontStrategy) Name() string {
	return SourceStorefront
}

func (s *StorefrontStrategy) FindCover(ctx context.Context, title, author string) result.Result[Cover] {
	q := strings.TrimSpace(title)
	if usableAuthor(author) {
		q = strings.TrimSpace(q + " " + strings.TrimSpace(author))
	}
	if q == "" || s.searchURL == "" {
		return result.NotFound[Cover]()
	}

	target := s.searchURL + "?" + url.Values{"q": {q}}.Encode()
	page, err := s.fetchPage(ctx, target)
	if err != nil {
		return result.Failed[Cover](err)
	}

	cover, ok, err := parseStorefront(page)
	if err != nil {
		return result.Failed[Cover](err)
	}
	if !ok {
		return result.NotFound[Cover]()
	}
	return result.Of(cover)
}

func (s *StorefrontStrategy) fetchPage(ctx context.Context, target string) ([]byte, error) {
	if len(s.proxies) == 0 {
		return s.fetch.get(ctx, target)
	}

	var lastErr error
	for _, tmpl := range s.proxies {
		body, err := s.fetch.get(ctx, strings.ReplaceAll(tmpl, "{url}", url.QueryEscape(target)))
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// parseStorefront reads the first schema.org Book block of a search page.
func parseStorefront(page []byte) (Cover, bool, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return Cover{}, false, errors.WithStack(err)
	}

	block := htmlutil.Find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && strings.Contains(htmlutil.Attr(n, "itemtype"), "schema.org/Book")
	})
	if block == nil {
		return Cover{}, false, nil
	}

	img := htmlutil.Find(block, htmlutil.Element("img", "bookCover"))
	if img == nil {
		return Cover{}, false, nil
	}
	src := strings.TrimSpace(htmlutil.Attr(img, "src"))
	if src == "" {
		return Cover{}, false, nil
	}

	cover := Cover{
		URL:    sizeSuffixRE.ReplaceAllString(src, "."),
		Source: SourceStorefront,
	}
	if a := htmlutil.Find(block, htmlutil.Element("a", "authorName")); a != nil {
		cover.Author = htmlutil.Text(a)
	}
	return cover, true, nil
}
