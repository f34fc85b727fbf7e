// Package discovery finds a cover image for a book on the open web. Several
// sources are queried at once and the first that answers, in a fixed order
// of preference, wins.
package discovery

import (
	"context"
	"net/http"
	"net/url"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/result"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/sync/errgroup"
)

const (
	SourceOverride    = "override"
	SourceStorefront  = "storefront"
	SourceGoogleBooks = "google_books"
	SourceOpenLibrary = "open_library"
	SourcePlaceholder = "placeholder"
)

// Cover is the resolver's answer. Author is set when the source reported
// one alongside the image.
type Cover struct {
	URL    string `json:"url"`
	Author string `json:"author,omitempty"`
	Source string `json:"source"`
}

// Candidate is one search hit before it has been accepted.
type Candidate struct {
	Title    string
	Authors  []string
	CoverURL string
	Score    int
}

// Strategy is a single cover source.
type Strategy interface {
	Name() string
	// FindCover returns NotFound when the source has nothing suitable and
	// Failed when it could not be asked.
	FindCover(ctx context.Context, title, author string) result.Result[Cover]
}

type Resolver struct {
	strategies  []Strategy
	overrides   []config.CoverOverride
	placeholder string
}

type Option func(*Resolver)

// WithStrategies replaces the default strategies. Order is preference.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) {
		r.strategies = strategies
	}
}

// NewResolver builds a Resolver querying the storefront, Google Books and
// Open Library, in that order of preference.
func NewResolver(cfg *config.Config, client *http.Client, opts ...Option) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: cfg.DiscoveryRequestTimeout}
	}
	prober := NewImageProber(client, cfg.ImageProbeTimeout)

	r := &Resolver{
		strategies: []Strategy{
			NewStorefrontStrategy(cfg, client),
			NewGoogleBooksStrategy(cfg, client, prober),
			NewOpenLibraryStrategy(cfg, client),
		},
		overrides:   cfg.CoverOverrides,
		placeholder: cfg.PlaceholderCoverURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Strategies() []Strategy {
	return r.strategies
}

// Placeholder is the cover every book without a real one shows.
func (r *Resolver) Placeholder() Cover {
	return Cover{URL: r.placeholder, Source: SourcePlaceholder}
}

// IsPlaceholder reports whether rawURL points at the placeholder image
// host. Any cover there is treated as no cover at all.
func (r *Resolver) IsPlaceholder(rawURL string) bool {
	return rawURL == "" || sameHost(rawURL, r.placeholder)
}

// FindCover never fails. Sources that error are logged and skipped, and
// when nothing is found the placeholder comes back.
func (r *Resolver) FindCover(ctx context.Context, title, author string) Cover {
	log := logger.FromContext(ctx).Data(logger.Data{"title": title, "author": author})

	if cover, ok := r.override(author); ok {
		log.Info("using cover override", logger.Data{"url": cover.URL})
		return cover
	}

	results := make([]result.Result[Cover], len(r.strategies))
	var g errgroup.Group
	for i, s := range r.strategies {
		g.Go(func() error {
			results[i] = s.FindCover(ctx, title, author)
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		name := r.strategies[i].Name()
		if res.Failed() {
			log.Err(res.Err).Warn("cover source failed", logger.Data{"source": name})
			continue
		}
		if cover, found := res.Get(); found && cover.URL != "" {
			log.Info("found cover", logger.Data{"source": name, "url": cover.URL})
			return cover
		}
	}

	log.Info("no cover found")
	return r.Placeholder()
}

func (r *Resolver) override(author string) (Cover, bool) {
	a := Normalize(author)
	if a == "" {
		return Cover{}, false
	}
	for _, o := range r.overrides {
		for _, variant := range o.Authors {
			if Normalize(variant) == a {
				return Cover{URL: o.CoverURL, Author: author, Source: SourceOverride}, true
			}
		}
	}
	return Cover{}, false
}

func sameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host != "" && ua.Hostname() == ub.Hostname()
}
