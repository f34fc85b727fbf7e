package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/result"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const (
	openLibraryLimit    = 10
	openLibraryMinScore = 50
)

type openLibraryDoc struct {
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
	CoverI     int64    `json:"cover_i"`
}

type openLibraryResponse struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

// OpenLibraryStrategy takes the best scoring search result that has a
// cover, if it scores high enough.
type OpenLibraryStrategy struct {
	fetch     *fetcher
	baseURL   string
	coversURL string
}

func NewOpenLibraryStrategy(cfg *config.Config, client *http.Client) *OpenLibraryStrategy {
	return &OpenLibraryStrategy{
		fetch:     newFetcher(client, cfg.DiscoveryRequestsPerSec),
		baseURL:   strings.TrimRight(cfg.OpenLibraryURL, "/"),
		coversURL: strings.TrimRight(cfg.OpenLibraryCoversURL, "/"),
	}
}

func (s *OpenLibraryStrategy) Name() string {
	return SourceOpenLibrary
}

func (s *OpenLibraryStrategy) FindCover(ctx context.Context, title, author string) result.Result[Cover] {
	if strings.TrimSpace(title) == "" {
		return result.NotFound[Cover]()
	}

	params := url.Values{
		"title":  {strings.TrimSpace(title)},
		"limit":  {strconv.Itoa(openLibraryLimit)},
		"fields": {"title,author_name,cover_i"},
	}
	if usableAuthor(author) {
		params.Set("author", strings.TrimSpace(author))
	}

	body, err := s.fetch.get(ctx, s.baseURL+"/search.json?"+params.Encode())
	if err != nil {
		return result.Failed[Cover](err)
	}

	var resp openLibraryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return result.Failed[Cover](errors.Wrap(err, "failed to decode search response"))
	}

	var best *Candidate
	for _, doc := range resp.Docs {
		if doc.CoverI <= 0 {
			continue
		}
		c := Candidate{
			Title:    doc.Title,
			Authors:  doc.AuthorName,
			CoverURL: s.coverURL(doc.CoverI),
			Score:    Score(doc.Title, doc.AuthorName, title, author),
		}
		if best == nil || c.Score > best.Score {
			best = &c
		}
	}
	if best == nil || best.Score < openLibraryMinScore {
		return result.NotFound[Cover]()
	}

	cover := Cover{URL: best.CoverURL, Source: SourceOpenLibrary}
	if len(best.Authors) > 0 {
		cover.Author = best.Authors[0]
	}
	return result.Of(cover)
}

func (s *OpenLibraryStrategy) coverURL(id int64) string {
	return fmt.Sprintf("%s/b/id/%d-L.jpg", s.coversURL, id)
}
