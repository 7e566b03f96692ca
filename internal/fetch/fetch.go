// Package fetch retrieves the published growth-probability map.
package fetch

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/banshee-data/mushmap/internal/httputil"
	"github.com/banshee-data/mushmap/internal/mapimg"
	"github.com/banshee-data/mushmap/internal/monitoring"
	"github.com/banshee-data/mushmap/internal/timeutil"
)

// maxImageBytes caps the downloaded payload. The published map is a few
// hundred kilobytes; anything much larger is a broken or hostile source.
const maxImageBytes = 16 * 1024 * 1024

// Fetcher downloads and decodes the current published map. It performs no
// retries; retry policy belongs to the invoker.
type Fetcher struct {
	client httputil.HTTPClient
	clock  timeutil.Clock
	url    string
}

// NewFetcher creates a Fetcher for the given source URL.
func NewFetcher(client httputil.HTTPClient, clock timeutil.Clock, url string) *Fetcher {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Fetcher{client: client, clock: clock, url: url}
}

// Fetch retrieves the currently published map, decodes it, and stamps it
// with the retrieval time.
func (f *Fetcher) Fetch(ctx context.Context) (*mapimg.RawMap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", f.url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, f.url)
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode map payload: %w", err)
	}

	m := mapimg.NewRawMap(img, f.clock.Now().UTC())
	monitoring.Logf("[Fetcher] Downloaded map: format=%s size=%dx%d", format, m.Width, m.Height)
	return m, nil
}
