package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"DailyPodcast/internal/ports"
)

// Direct downloads the page itself. It ignores selectors and always returns
// the raw body, so it is the last resort for HTML listings.
type Direct struct {
	client    *http.Client
	userAgent string
}

var _ ports.ContentFetcher = (*Direct)(nil)

func NewDirect(client *http.Client) *Direct {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Direct{client: client, userAgent: "DailyPodcast/1.0"}
}

func (d *Direct) Name() string {
	return "direct"
}

func (d *Direct) Fetch(ctx context.Context, pageURL string, _ ports.Format, _ ports.Selector) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(body), nil
}
