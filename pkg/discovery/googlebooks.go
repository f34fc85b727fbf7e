package discovery

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/result"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const (
	googleBooksMaxResults = 10
	googleBooksMinScore   = 40
)

type Volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Subtitle      string   `json:"subtitle"`
		Authors       []string `json:"authors"`
		PublishedDate string   `json:"publishedDate"`
		Description   string   `json:"description"`
		ImageLinks    struct {
			SmallThumbnail string `json:"smallThumbnail"`
			Thumbnail      string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// CoverURL returns the largest thumbnail, upgraded to https.
func (v Volume) CoverURL() string {
	u := v.VolumeInfo.ImageLinks.Thumbnail
	if u == "" {
		u = v.VolumeInfo.ImageLinks.SmallThumbnail
	}
	if strings.HasPrefix(u, "http://") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// GoogleBooksClient is a minimal client for the volumes search endpoint.
type GoogleBooksClient struct {
	fetch   *fetcher
	baseURL string
	apiKey  string
}

func NewGoogleBooksClient(cfg *config.Config, client *http.Client) *GoogleBooksClient {
	return &GoogleBooksClient{
		fetch:   newFetcher(client, cfg.DiscoveryRequestsPerSec),
		baseURL: strings.TrimRight(cfg.GoogleBooksURL, "/"),
		apiKey:  cfg.GoogleBooksAPIKey,
	}
}

// Search runs a volumes query. q uses the API's own syntax, e.g.
// `intitle:"dune"`.
func (c *GoogleBooksClient) Search(ctx context.Context, q string, maxResults int) ([]Volume, error) {
	params := url.Values{
		"q":          {q},
		"maxResults": {strconv.Itoa(maxResults)},
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	body, err := c.fetch.get(ctx, c.baseURL+"/volumes?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp volumesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode volumes response")
	}
	return resp.Items, nil
}

// GoogleBooksStrategy accepts the first reasonably matching volume whose
// thumbnail actually loads.
type GoogleBooksStrategy struct {
	client *GoogleBooksClient
	prober *ImageProber
}

func NewGoogleBooksStrategy(cfg *config.Config, client *http.Client, prober *ImageProber) *GoogleBooksStrategy {
	return &GoogleBooksStrategy{
		client: NewGoogleBooksClient(cfg, client),
		prober: prober,
	}
}

func (s *GoogleBooksStrategy) Name() string {
	return SourceGoogleBooks
}

func (s *GoogleBooksStrategy) FindCover(ctx context.Context, title, author string) result.Result[Cover] {
	if strings.TrimSpace(title) == "" {
		return result.NotFound[Cover]()
	}

	q := `intitle:"` + strings.TrimSpace(title) + `"`
	if usableAuthor(author) {
		q += ` inauthor:"` + strings.TrimSpace(author) + `"`
	}

	volumes, err := s.client.Search(ctx, q, googleBooksMaxResults)
	if err != nil {
		return result.Failed[Cover](err)
	}

	log := logger.FromContext(ctx)
	for _, c := range volumeCandidates(volumes, title, author) {
		if c.Score < googleBooksMinScore || c.CoverURL == "" {
			continue
		}
		if !s.prober.Loads(ctx, c.CoverURL) {
			log.Debug("cover candidate did not load", logger.Data{"url": c.CoverURL})
			continue
		}
		cover := Cover{URL: c.CoverURL, Source: SourceGoogleBooks}
		if len(c.Authors) > 0 {
			cover.Author = c.Authors[0]
		}
		return result.Of(cover)
	}
	return result.NotFound[Cover]()
}

func volumeCandidates(volumes []Volume, title, author string) []Candidate {
	candidates := make([]Candidate, 0, len(volumes))
	for _, v := range volumes {
		candidates = append(candidates, Candidate{
			Title:    v.VolumeInfo.Title,
			Authors:  v.VolumeInfo.Authors,
			CoverURL: v.CoverURL(),
			Score:    Score(v.VolumeInfo.Title, v.VolumeInfo.Authors, title, author),
		})
	}
	return candidates
}
