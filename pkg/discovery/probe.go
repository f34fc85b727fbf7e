package discovery

import (
	"context"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"net/http"
	"time"

	_ "golang.org/x/image/webp" // register decoder
)

// minProbeDimension is the size at or below which an image is taken to be a
// tracking pixel or a "no image" stub.
const minProbeDimension = 10

// ImageProber checks that a cover URL serves a real image.
type ImageProber struct {
	client  *http.Client
	timeout time.Duration
}

func NewImageProber(client *http.Client, timeout time.Duration) *ImageProber {
	return &ImageProber{client: client, timeout: timeout}
}

// Loads reports whether rawURL decodes as an image larger than 10x10. Only
// the header is read.
func (p *ImageProber) Loads(ctx context.Context, rawURL string) bool {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	cfg, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return false
	}
	return cfg.Width > minProbeDimension && cfg.Height > minProbeDimension
}
