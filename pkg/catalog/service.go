// Package catalog searches a public book catalog for titles the user may
// want to find elsewhere.
package catalog

import (
	"context"
	"net/url"
	"strings"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/discovery"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/htmlutil"
	"github.com/robinjoseph08/golib/logger"
)

const (
	SourceGoogleBooks = discovery.SourceGoogleBooks

	LinkAnnasArchive = "annas_archive"
	LinkLibgen       = "libgen"
)

type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Result struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	CoverURL      string `json:"cover_url,omitempty"`
	Description   string `json:"description,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
	Source        string `json:"source"`
	ExternalLinks []Link `json:"external_links"`
}

// Searcher runs a raw catalog query.
type Searcher interface {
	Search(ctx context.Context, q string, maxResults int) ([]discovery.Volume, error)
}

type Service struct {
	searcher     Searcher
	annasPrefix  string
	libgenPrefix string
}

func NewService(cfg *config.Config, searcher Searcher) *Service {
	return &Service{
		searcher:     searcher,
		annasPrefix:  cfg.ArchiveAnnasSearchURL,
		libgenPrefix: cfg.ArchiveLibgenSearchURL,
	}
}

// Search returns catalog hits for query in the catalog's own order.
func (svc *Service) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	volumes, err := svc.searcher.Search(ctx, query, limit)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("catalog search failed")
		return nil, errcodes.UpstreamUnavailable("Google Books")
	}

	results := make([]*Result, 0, len(volumes))
	for _, v := range volumes {
		info := v.VolumeInfo
		title := info.Title
		if info.Subtitle != "" {
			title += ": " + info.Subtitle
		}
		author := strings.Join(info.Authors, ", ")

		results = append(results, &Result{
			ID:            v.ID,
			Title:         title,
			Author:        author,
			CoverURL:      v.CoverURL(),
			Description:   htmlutil.StripTags(info.Description),
			PublishedDate: info.PublishedDate,
			Source:        SourceGoogleBooks,
			ExternalLinks: svc.links(info.Title, author),
		})
	}
	return results, nil
}

func (svc *Service) links(title, author string) []Link {
	q := strings.TrimSpace(title + " " + author)
	var links []Link
	if svc.annasPrefix != "" {
		links = append(links, Link{Name: LinkAnnasArchive, URL: svc.annasPrefix + url.QueryEscape(q)})
	}
	if svc.libgenPrefix != "" {
		links = append(links, Link{Name: LinkLibgen, URL: svc.libgenPrefix + url.QueryEscape(q)})
	}
	return links
}
