package discovery

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	maxResponseSize = 8 << 20
	userAgent       = "folio/1.0 (+https://github.com/foliobooks/folio)"
)

// fetcher issues rate-limited GETs. Each strategy owns one so a slow source
// cannot starve the others.
type fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newFetcher(client *http.Client, perSecond float64) *fetcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &fetcher{client: client, limiter: rate.NewLimiter(limit, 1)}
}

func (f *fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return body, nil
}
